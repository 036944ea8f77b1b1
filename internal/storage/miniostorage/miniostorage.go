// Package miniostorage provides blob storage for source images, watermarks and results on top of MinIO
package miniostorage

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

const defaultPort = "9000"

// Options - параметры подключения к MinIO
type Options struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	Secure   bool
}

// OptionsFromConfig читает MINIO_* и BUCKET_NAME; MINIO_ENDPOINT приоритетнее MINIO_CONTAINER_NAME
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Endpoint: cfg.GetString("MINIO_ENDPOINT"),
		User:     cfg.GetString("MINIO_USER"),
		Password: cfg.GetString("MINIO_PASS"),
		Bucket:   cfg.GetString("BUCKET_NAME"),
		Secure:   strings.EqualFold(cfg.GetString("MINIO_SECURE"), "true"),
	}
	if opts.Endpoint == "" {
		opts.Endpoint = cfg.GetString("MINIO_CONTAINER_NAME") + ":" + defaultPort
	}
	if opts.Bucket == "" {
		opts.Bucket = "watermarks"
		log.Printf("Bucket name is empty. Using default value %q...", opts.Bucket)
	}
	return opts
}

type MinioJobStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, opts Options) (*MinioJobStorage, error) {
	// подключаемся к минио - создаем клиента
	strg, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Password, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, strg, opts.Bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioJobStorage{bucket: opts.Bucket, client: strg}, nil
}

func (s *MinioJobStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return err
	}

	return nil
}

func (s *MinioJobStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Get - вызывающий обязан закрыть reader
func (s *MinioJobStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		if cErr := res.Close(); cErr != nil {
			log.Println("Failed to close MinIO object after stat error:", cErr)
		}
		return nil, "", err
	}

	return res, resStat.ContentType, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
