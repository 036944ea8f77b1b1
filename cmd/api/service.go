package main

import (
	"context"

	"github.com/UnendingLoop/WatermarkManager/internal/service"
	"github.com/UnendingLoop/WatermarkManager/internal/transport"
	"github.com/wb-go/wbf/config"
)

// JobAPIService - то, что нужно API: хендлерам и фоновому восстановлению подвисших задач
type JobAPIService interface {
	transport.JobService
	ReviveOrphans(ctx context.Context, limit int)
}

func keyPrefixes(cfg *config.Config) service.KeyPrefixes {
	p := service.KeyPrefixes{
		Source:    cfg.GetString("SOURCE_KEY"),
		Watermark: cfg.GetString("WM_KEY"),
		Result:    cfg.GetString("RESULT_KEY"),
	}
	if p.Source == "" {
		p.Source = "source/"
	}
	if p.Watermark == "" {
		p.Watermark = "watermark/"
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
