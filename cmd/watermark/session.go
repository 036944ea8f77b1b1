package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/afero"
)

var (
	errInputMissing = errors.New("input file not found")
	errBadJobLine   = errors.New("job line must be: input type payload [effects...]")
)

// runner - то, что сессии нужно от оркестратора
type runner interface {
	Run(ctx context.Context, opts watermark.Options) (string, error)
}

// job - одна операция в терминах пользователя: имена файлов внутри imgDir
type job struct {
	input   string
	wmType  string
	payload string // текст или имя файла водяного знака
	effects []string
}

type session struct {
	fs     afero.Fs
	imgDir string
	outDir string
	core   runner
}

// process validates the job against the filesystem and runs it once.
func (s *session) process(ctx context.Context, j job) (string, error) {
	wmType := model.WatermarkType(strings.ToLower(strings.TrimSpace(j.wmType)))
	if !model.WatermarkTypeMap[wmType] {
		return "", fmt.Errorf("watermark type %q: %w", j.wmType, model.ErrIncorrectWMType)
	}

	effects, err := imageproc.ParseEffects(j.effects)
	if err != nil {
		return "", err
	}

	opts := watermark.Options{
		InputImage:    filepath.Join(s.imgDir, j.input),
		WatermarkType: wmType,
		Effects:       effects,
		OutputDir:     s.outDir,
	}
	if err := s.mustExist(opts.InputImage); err != nil {
		return "", err
	}

	switch wmType {
	case model.WMText:
		opts.WatermarkText = j.payload
	case model.WMImage:
		if strings.TrimSpace(j.payload) == "" {
			return "", model.ErrEmptyWMark
		}
		opts.WatermarkImage = filepath.Join(s.imgDir, j.payload)
		if err := s.mustExist(opts.WatermarkImage); err != nil {
			return "", err
		}
	}

	if err := s.fs.MkdirAll(s.outDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare output dir %q: %w", s.outDir, err)
	}

	return s.core.Run(ctx, opts)
}

func (s *session) mustExist(path string) error {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return fmt.Errorf("check %q: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%q: %w", path, errInputMissing)
	}
	return nil
}

// parseJobLine splits one stdin line of the loop mode with shell quoting rules,
// so a text watermark may contain spaces: photo.jpg text "Hello world" invert
func parseJobLine(line string) (job, error) {
	fields, err := shellwords.Parse(line)
	if err != nil {
		return job{}, fmt.Errorf("%w: %w", errBadJobLine, err)
	}
	if len(fields) < 3 {
		return job{}, errBadJobLine
	}
	return job{
		input:   fields[0],
		wmType:  fields[1],
		payload: fields[2],
		effects: fields[3:],
	}, nil
}
