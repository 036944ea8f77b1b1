// Package service provides business-logic for the watermark jobs
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/mwlogger"
	"github.com/UnendingLoop/WatermarkManager/internal/repository"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wb-go/wbf/retry"
)

type JobService struct {
	repo            repository.JobRepo
	publisher       TaskPublisher
	storage         ImageStorage
	srcKeyPrefix    string
	wmKeyPrefix     string
	resultKeyPrefix string
}

// KeyPrefixes - префиксы ключей в хранилище для исходника, ватермарка и результата
type KeyPrefixes struct {
	Source    string
	Watermark string
	Result    string
}

func NewJobService(jobRep repository.JobRepo, pub TaskPublisher, strg ImageStorage, prefixes KeyPrefixes) *JobService {
	return &JobService{
		repo:            jobRep,
		publisher:       pub,
		storage:         strg,
		srcKeyPrefix:    prefixes.Source,
		wmKeyPrefix:     prefixes.Watermark,
		resultKeyPrefix: prefixes.Result,
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// ResultFile - готовый результат для отдачи клиенту
type ResultFile struct {
	Data        io.ReadCloser
	ContentType string
	FileName    string
}

func (c JobService) Create(ctx context.Context, jobData *model.JobCreateData) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	newJob := &model.Job{}

	// Валидируем тип ватермарка, текст, эффекты и файлы
	if err := validateNormalizeJobInfo(jobData, newJob); err != nil {
		return nil, err
	}

	// генерируем UUID
	newJob.UID = uuid.New()

	// кладем в хранилище сорсник
	newJob.SourceKey = c.srcKeyPrefix + newJob.UID.String() + model.GetImageFileExt[jobData.OrigContentType]

	if err := c.storage.Put(ctx, newJob.SourceKey, jobData.OrigImgSize, jobData.OrigContentType, jobData.OrigImg); err != nil {
		logger.Error().Err(err).Msg("Failed to save src-image in Storage")
		return nil, model.ErrCommon500
	}

	// кладем в хранилище ватермарк - только для типа image
	if newJob.WatermarkType == model.WMImage {
		newJob.WatermarkKey = c.wmKeyPrefix + newJob.UID.String() + model.GetImageFileExt[jobData.WMContentType]

		if err := c.storage.Put(ctx, newJob.WatermarkKey, jobData.WMImgSize, jobData.WMContentType, jobData.WMImg); err != nil {
			logger.Error().Err(err).Msg("Failed to save watermark in Storage")
			c.cleanupBlobs(ctx, newJob.SourceKey)
			return nil, model.ErrCommon500
		}
	}

	// ставим статус и таймстамп
	newJob.Status = model.StatusCreated
	now := time.Now().UTC()
	newJob.CreatedAt = &now
	newJob.UpdatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, newJob); err != nil {
		logger.Error().Err(err).Msg("Failed to create job in DB")
		c.cleanupBlobs(ctx, newJob.SourceKey, newJob.WatermarkKey)
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку); при ошибке запись остается в created,
	// ReviveOrphans переопубликует ее - задача принята, клиенту отдаем 201
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(newJob.UID.String()), nil); err != nil {
		logger.Warn().Err(err).Str("job_id", newJob.UID.String()).Msg("Failed to publish job to task-queue, left for orphan recovery")
		return newJob, nil
	}

	logger.Info().Str("job_id", newJob.UID.String()).Str("watermark_type", string(newJob.WatermarkType)).Msg("Watermark job created")
	return newJob, nil
}

func (c JobService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch jobs list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	return c.fetchJob(ctx, id)
}

// LoadResult отдает результат обработки и имя файла вида <name>-with-watermark.<ext>
func (c JobService) LoadResult(ctx context.Context, id string) (*ResultFile, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.fetchJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusDone {
		return nil, model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", id))
		return nil, model.ErrCommon500
	}

	return &ResultFile{Data: data, ContentType: cType, FileName: watermark.OutputName(res.SourceName)}, nil
}

func (c JobService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	// читаем из базы
	res, err := c.fetchJob(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return model.ErrJobNotFound
		}
		logger.Error().Err(err).Msg("Failed to delete job from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища сорсник, результат и ватермарк(если они есть)
	if err := c.storage.Delete(ctx, res.SourceKey); err != nil {
		logger.Error().Err(err).Msg("Failed to delete src-image from Storage")
		return model.ErrCommon500
	}
	if res.ResultKey != "" {
		if err := c.storage.Delete(ctx, res.ResultKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete result-image from Storage")
			return model.ErrCommon500
		}
	}
	if res.WatermarkKey != "" {
		if err := c.storage.Delete(ctx, res.WatermarkKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete watermark from Storage")
			return model.ErrCommon500
		}
	}

	return nil
}

func (c JobService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c JobService) SaveResult(ctx context.Context, input *model.Job) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	input.Status = model.StatusDone
	if err := c.repo.SaveResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// MarkFailed переводит задачу в failed и сохраняет текст ошибки конвейера
func (c JobService) MarkFailed(ctx context.Context, id string, cause error) error {
	logger := mwlogger.LoggerFromContext(ctx)

	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}

	if err := c.repo.MarkFailed(ctx, id, reason); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to mark job as failed in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ResultKey собирает ключ результата: префикс + uid + расширение по content-type
func (c JobService) ResultKey(uid uuid.UUID, contentType string) string {
	return c.resultKeyPrefix + uid.String() + model.GetImageFileExt[contentType]
}

func (c JobService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan to queue")
		}
	}
	if len(orphans) > 0 {
		logger.Info().Int("count", len(orphans)).Msg("Orphan jobs republished")
	}
}

func (c JobService) fetchJob(ctx context.Context, id string) (*model.Job, error) {
	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return nil, model.ErrJobNotFound // 404
		default:
			logger := mwlogger.LoggerFromContext(ctx)
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
			return nil, model.ErrCommon500
		}
	}
	return res, nil
}

// cleanupBlobs - best effort, ошибки только логируются
func (c JobService) cleanupBlobs(ctx context.Context, keys ...string) {
	logger := mwlogger.LoggerFromContext(ctx)
	keys = lo.Filter(keys, func(k string, _ int) bool { return k != "" })
	for _, k := range keys {
		if err := c.storage.Delete(ctx, k); err != nil {
			logger.Warn().Err(err).Str("key", k).Msg("Failed to cleanup blob after failed job creation")
		}
	}
}
