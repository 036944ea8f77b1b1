// Package main (in watermark-subfolder) is the local command line watermark manager
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/UnendingLoop/WatermarkManager/internal/codec"
	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/mwlogger"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type cliFlags struct {
	input     string
	wmType    string
	text      string
	watermark string
	effects   []string
	imgDir    string
	outDir    string
	logLevel  string
	loop      bool
}

func main() {
	// инициализировать конфиг/ считать энвы, .env для CLI необязателен
	appConfig := config.New()
	appConfig.EnableEnv("")
	fs := afero.NewOsFs()
	if ok, _ := afero.Exists(fs, "./.env"); ok {
		if err := appConfig.LoadEnvFiles("./.env"); err != nil {
			log.Fatalf("Failed to load envs: %s\nExiting app...", err)
		}
	}

	flags, err := parseFlags(os.Args[1:], appConfig)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Incorrect arguments: %v", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(flags.logLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = mwlogger.WithLogger(ctx, zlog.Logger)

	raster, err := imageproc.NewTextRasterizer()
	if err != nil {
		log.Fatalf("Failed to init text rasterizer: %v", err)
	}
	defer func() {
		if err := raster.Close(); err != nil {
			log.Println("Failed to close text rasterizer:", err)
		}
	}()

	s := &session{
		fs:     fs,
		imgDir: flags.imgDir,
		outDir: flags.outDir,
		core:   watermark.New(codec.New(fs), raster),
	}

	if flags.loop {
		fmt.Fprintf(os.Stdout, "Hi! Welcome to \"Watermark manager\". Copy your image files to %s, then type jobs as: input type payload [effects...]\n", flags.imgDir)
		loop(ctx, s, os.Stdin, os.Stdout)
		return
	}

	outPath, err := s.process(ctx, flags.job())
	if !report(os.Stdout, outPath, err) {
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, cfg *config.Config) (*cliFlags, error) {
	f := &cliFlags{}
	set := pflag.NewFlagSet("watermark", pflag.ContinueOnError)

	set.StringVarP(&f.input, "input", "i", "test.jpg", "file to mark, relative to --img-dir")
	set.StringVarP(&f.wmType, "type", "t", "text", "watermark type: text or image")
	set.StringVar(&f.text, "text", "", "watermark text")
	set.StringVarP(&f.watermark, "watermark", "w", "logo.png", "watermark file, relative to --img-dir")
	set.StringSliceVarP(&f.effects, "effects", "e", nil, "effects: brightness,contrast,greyscale,invert")
	set.StringVar(&f.imgDir, "img-dir", envOr(cfg, "WM_IMG_DIR", "./img"), "folder with input images")
	set.StringVar(&f.outDir, "out-dir", envOr(cfg, "WM_OUT_DIR", "."), "folder for results")
	set.StringVar(&f.logLevel, "log-level", envOr(cfg, "LOG_LEVEL", "info"), "log level")
	set.BoolVar(&f.loop, "loop", false, "read one job per stdin line")

	if err := set.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *cliFlags) job() job {
	return job{
		input:   f.input,
		wmType:  f.wmType,
		payload: lo.Ternary(strings.EqualFold(f.wmType, string(model.WMImage)), f.watermark, f.text),
		effects: f.effects,
	}
}

// loop - сессия живет здесь, ядро про повторы ничего не знает
func loop(ctx context.Context, s *session, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return
		}

		j, err := parseJobLine(line)
		if err != nil {
			report(out, "", err)
			continue
		}
		outPath, err := s.process(ctx, j)
		report(out, outPath, err)

		if ctx.Err() != nil {
			return
		}
	}
	if err := sc.Err(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to read stdin")
	}
}

func report(out io.Writer, outPath string, err error) bool {
	if err != nil {
		fmt.Fprintf(out, "Something went wrong... %v\n", err)
		return false
	}
	fmt.Fprintf(out, "Success! %s\n", outPath)
	return true
}

func envOr(cfg *config.Config, key, def string) string {
	if v := cfg.GetString(key); v != "" {
		return v
	}
	return def
}
