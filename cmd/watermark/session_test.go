package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/config"
)

type mockRunner struct {
	runFn func(ctx context.Context, opts watermark.Options) (string, error)
	calls []watermark.Options
}

func (m *mockRunner) Run(ctx context.Context, opts watermark.Options) (string, error) {
	m.calls = append(m.calls, opts)
	if m.runFn != nil {
		return m.runFn(ctx, opts)
	}
	return watermark.OutputPath(opts.OutputDir, opts.InputImage), nil
}

func newSession(t *testing.T, files ...string) (*session, *mockRunner) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, "img/"+f, []byte("x"), 0o644))
	}
	r := &mockRunner{}
	return &session{fs: fs, imgDir: "img", outDir: "out", core: r}, r
}

func TestParseJobLine(t *testing.T) {
	tests := []struct {
		line    string
		want    job
		wantErr bool
	}{
		{
			line: "photo.jpg text Hello",
			want: job{input: "photo.jpg", wmType: "text", payload: "Hello", effects: []string{}},
		},
		{
			line: `photo.jpg text "Hello  world" invert greyscale`,
			want: job{input: "photo.jpg", wmType: "text", payload: "Hello  world", effects: []string{"invert", "greyscale"}},
		},
		{
			line: "  photo.jpg\timage logo.png  brightness,contrast ",
			want: job{input: "photo.jpg", wmType: "image", payload: "logo.png", effects: []string{"brightness,contrast"}},
		},
		{
			line: `photo.jpg text ""`,
			want: job{input: "photo.jpg", wmType: "text", payload: "", effects: []string{}},
		},
		{line: "photo.jpg text", wantErr: true},
		{line: `photo.jpg text "unterminated`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseJobLine(tt.line)
			if tt.wantErr {
				require.ErrorIs(t, err, errBadJobLine)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{
		"--input", "cat.png", "--type", "image", "-w", "logo.png",
		"--effects", "invert,contrast", "-e", "greyscale", "--out-dir", "res",
	}, config.New())
	require.NoError(t, err)

	require.Equal(t, "res", f.outDir)
	require.Equal(t, "./img", f.imgDir)
	require.False(t, f.loop)
	require.Equal(t, job{
		input:   "cat.png",
		wmType:  "image",
		payload: "logo.png",
		effects: []string{"invert", "contrast", "greyscale"},
	}, f.job())

	f, err = parseFlags([]string{"--text", "Sample", "--loop"}, config.New())
	require.NoError(t, err)
	require.True(t, f.loop)
	require.Equal(t, "Sample", f.job().payload)

	_, err = parseFlags([]string{"--unknown"}, config.New())
	require.Error(t, err)
}

func TestSession_Process(t *testing.T) {
	tests := []struct {
		name    string
		job     job
		wantErr error
		check   func(t *testing.T, opts watermark.Options)
	}{
		{
			name: "text",
			job:  job{input: "photo.jpg", wmType: "TEXT", payload: "Hi", effects: []string{"invert", "brightness"}},
			check: func(t *testing.T, opts watermark.Options) {
				require.Equal(t, "img/photo.jpg", opts.InputImage)
				require.Equal(t, model.WMText, opts.WatermarkType)
				require.Equal(t, "Hi", opts.WatermarkText)
				require.Equal(t, imageproc.EffectBrightness|imageproc.EffectInvert, opts.Effects)
				require.Equal(t, "out", opts.OutputDir)
			},
		},
		{
			name: "image",
			job:  job{input: "photo.jpg", wmType: "image", payload: "logo.png"},
			check: func(t *testing.T, opts watermark.Options) {
				require.Equal(t, "img/logo.png", opts.WatermarkImage)
				require.Equal(t, imageproc.NoEffects, opts.Effects)
			},
		},
		{
			name:    "missing input",
			job:     job{input: "nope.jpg", wmType: "text", payload: "Hi"},
			wantErr: errInputMissing,
		},
		{
			name:    "missing watermark",
			job:     job{input: "photo.jpg", wmType: "image", payload: "nope.png"},
			wantErr: errInputMissing,
		},
		{
			name:    "empty watermark name",
			job:     job{input: "photo.jpg", wmType: "image", payload: " "},
			wantErr: model.ErrEmptyWMark,
		},
		{
			name:    "bad type",
			job:     job{input: "photo.jpg", wmType: "sticker", payload: "Hi"},
			wantErr: model.ErrIncorrectWMType,
		},
		{
			name:    "bad effect",
			job:     job{input: "photo.jpg", wmType: "text", payload: "Hi", effects: []string{"blur"}},
			wantErr: model.ErrUnknownEffect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r := newSession(t, "photo.jpg", "logo.png")

			out, err := s.process(context.Background(), tt.job)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Empty(t, r.calls)
				return
			}
			require.NoError(t, err)
			require.Len(t, r.calls, 1)
			require.Equal(t, watermark.OutputPath("out", tt.job.input), out)
			tt.check(t, r.calls[0])

			ok, err := afero.DirExists(s.fs, "out")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestLoop(t *testing.T) {
	s, r := newSession(t, "photo.jpg")
	r.runFn = func(ctx context.Context, opts watermark.Options) (string, error) {
		if opts.WatermarkText == "boom" {
			return "", model.NewPipelineError(model.ErrEncode, "out/photo-with-watermark.jpg", errors.New("disk full"))
		}
		return watermark.OutputPath(opts.OutputDir, opts.InputImage), nil
	}

	in := strings.NewReader(strings.Join([]string{
		`photo.jpg text "Hello world" invert`,
		"",
		"photo.jpg text",
		"photo.jpg text boom",
		"exit",
		"photo.jpg text never",
	}, "\n"))
	var out bytes.Buffer

	loop(context.Background(), s, in, &out)

	require.Len(t, r.calls, 2)
	require.Equal(t, "Hello world", r.calls[0].WatermarkText)

	text := out.String()
	require.Contains(t, text, "Success! out/photo-with-watermark.jpg")
	require.Contains(t, text, errBadJobLine.Error())
	require.Contains(t, text, "disk full")
	require.NotContains(t, text, "never")
}
