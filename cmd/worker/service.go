package main

import (
	"context"

	"github.com/UnendingLoop/WatermarkManager/internal/codec"
	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/service"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/UnendingLoop/WatermarkManager/internal/worker"
	"github.com/spf13/afero"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}

// runnerFactory - один растеризатор на процесс, своя in-memory ФС на каждую задачу
func runnerFactory(raster *imageproc.TextRasterizer) worker.RunnerFactory {
	return func(fs afero.Fs) worker.Runner {
		return watermark.New(codec.New(fs), raster)
	}
}

func keyPrefixes(cfg *config.Config) service.KeyPrefixes {
	p := service.KeyPrefixes{
		Source:    cfg.GetString("SOURCE_KEY"),
		Watermark: cfg.GetString("WM_KEY"),
		Result:    cfg.GetString("RESULT_KEY"),
	}
	if p.Result == "" {
		p.Result = "result/"
	}
	return p
}

func logLevel(cfg *config.Config) string {
	if lvl := cfg.GetString("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
