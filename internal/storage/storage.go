// Package storage connects the blob storage used by the API and the worker
package storage

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/WatermarkManager/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

// NewJobStorage подключается к MinIO, повторяя попытки до успеха или отмены ctx
func NewJobStorage(ctx context.Context, cfg *config.Config, delay time.Duration) *miniostorage.MinioJobStorage {
	opts := miniostorage.OptionsFromConfig(cfg)

	for {
		log.Printf("Connecting to blob storage at %s...", opts.Endpoint)
		client, err := miniostorage.NewMinioClient(ctx, opts)
		if err == nil {
			log.Println("Successfully connected to blob storage!")
			return client
		}

		log.Printf("Failed to init connection to blob storage: %v\nNext retry in %v...", err, delay)
		select {
		case <-ctx.Done():
			log.Fatalln("Blob storage connection aborted:", ctx.Err())
		case <-time.After(delay):
		}
	}
}
