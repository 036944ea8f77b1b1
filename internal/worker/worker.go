// Package worker consumes watermark jobs from the queue and runs them through the watermark pipeline
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"time"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/mwlogger"
	"github.com/UnendingLoop/WatermarkManager/internal/service"
	"github.com/UnendingLoop/WatermarkManager/internal/watermark"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/inhies/go-bytesize"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"github.com/wb-go/wbf/zlog"
)

const (
	inputDir  = "/in"
	outputDir = "/out"
	// задача в in_progress дольше этого считается брошенной упавшим воркером
	staleAfter = 10 * time.Minute
)

var (
	errAlreadyInProgress = errors.New("job is already in progress")
	// задача уже помечена failed в БД - повторная доставка ничего не даст
	errJobFailed = errors.New("job marked as failed")
)

type JobWorkerService interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Job) error
	MarkFailed(ctx context.Context, id string, cause error) error
	ResultKey(uid uuid.UUID, contentType string) string
}

// Runner - один прогон конвейера наложения водяного знака
type Runner interface {
	Run(ctx context.Context, opts watermark.Options) (string, error)
}

// RunnerFactory строит Runner поверх файловой системы конкретной задачи
type RunnerFactory func(fs afero.Fs) Runner

type MessageCommitter interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage   service.ImageStorage
	service   JobWorkerService
	queue     <-chan kafkago.Message
	consumer  MessageCommitter
	newRunner RunnerFactory
}

func NewWorkerInstance(strg service.ImageStorage, svc JobWorkerService, q <-chan kafkago.Message, cons MessageCommitter, newRunner RunnerFactory) *Worker {
	return &Worker{storage: strg, service: svc, queue: q, consumer: cons, newRunner: newRunner}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			logger := zlog.Logger.With().Str("job_id", id).Logger()
			jobCtx := mwlogger.WithLogger(ctx, logger)

			if err := w.initProcessor(jobCtx, id); err != nil {
				logger.Error().Err(err).Msg("Job failed")
				if !errors.Is(err, model.ErrJobNotFound) && !errors.Is(err, errJobFailed) {
					continue
				}
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// считать из базы задачу
	task, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch job %q from DB: %w", id, err)
	}
	// проверить статус
	switch task.Status {
	case model.StatusDone, model.StatusFailed:
		logger.Debug().Str("status", string(task.Status)).Msg("Job already finished, skipping")
		return nil
	case model.StatusInProgress:
		if task.UpdatedAt == nil || time.Since(*task.UpdatedAt) < staleAfter {
			return errAlreadyInProgress
		}
		logger.Warn().Msg("Picking up stale in-progress job")
	}

	// обновить статус
	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of job %q to `in_progress` in DB: %w", id, err)
	}

	// выполняем саму операцию
	if pErr := w.processTask(ctx, task); pErr != nil {
		if uErr := w.service.MarkFailed(ctx, id, pErr); uErr != nil {
			return fmt.Errorf("failed to set status of job %q to `failed` in DB: %w \nAFTER\n error while processing job: %w", id, uErr, pErr)
		}
		return fmt.Errorf("failed to process job %q, %w: %w", id, errJobFailed, pErr)
	}

	logger.Info().Msg("Job done")
	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Job) error {
	fs := afero.NewMemMapFs()

	// достать из storage исходник и положить во временную ФС задачи
	srcPath, format, err := w.download(ctx, fs, task.SourceKey, "source")
	if err != nil {
		return fmt.Errorf("worker failed to fetch base-image: %w", err)
	}

	opts := watermark.Options{
		InputImage:    srcPath,
		WatermarkType: task.WatermarkType,
		WatermarkText: task.WatermarkText,
		OutputDir:     outputDir,
	}

	if task.WatermarkType == model.WMImage {
		opts.WatermarkImage, _, err = w.download(ctx, fs, task.WatermarkKey, "watermark")
		if err != nil {
			return fmt.Errorf("worker failed to fetch wm-image: %w", err)
		}
	}

	opts.Effects, err = imageproc.ParseEffects(task.Effects)
	if err != nil {
		return err
	}

	// выполнить операцию
	outPath, err := w.newRunner(fs).Run(ctx, opts)
	if err != nil {
		return err
	}

	result, err := afero.ReadFile(fs, outPath)
	if err != nil {
		return fmt.Errorf("worker failed to read result %q: %w", outPath, err)
	}

	// положить результат в сторедж если ошибок нет на предыдущем этапе
	resCType := model.GetCType[format]
	resKey := w.service.ResultKey(task.UID, resCType)
	if err := w.storage.Put(ctx, resKey, int64(len(result)), resCType, bytes.NewReader(result)); err != nil {
		return fmt.Errorf("worker failed to put result image to storage: %w", err)
	}
	logger := mwlogger.LoggerFromContext(ctx)
	logger.Debug().Str("key", resKey).Str("size", bytesize.New(float64(len(result))).String()).Msg("result uploaded")

	task.ResultKey = resKey

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

// download копирует blob в fs как <inputDir>/<name>.<ext>, расширение берется из реального формата
func (w *Worker) download(ctx context.Context, fs afero.Fs, key, name string) (string, imaging.Format, error) {
	r, _, err := w.storage.Get(ctx, key)
	if err != nil {
		return "", -1, err
	}

	data, format, err := validateImgFormat(r)
	if err != nil {
		return "", -1, err
	}

	p := path.Join(inputDir, name+model.GetImageFileExt[model.GetCType[format]])
	if err := afero.WriteFile(fs, p, data, 0o644); err != nil {
		return "", -1, err
	}
	return p, format, nil
}

func validateImgFormat(r io.ReadCloser) ([]byte, imaging.Format, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader provided")
	}
	defer closeFileFlow(r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, -1, err
	}

	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, -1, model.NewPipelineError(model.ErrDecode, "", err)
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return nil, -1, model.ErrUnsupportedFormat
	}

	switch format {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
	default:
		return nil, -1, model.ErrUnsupportedFormat
	}

	return data, format, nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}
