// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/mwlogger"
	"github.com/UnendingLoop/WatermarkManager/internal/service"
	"github.com/wb-go/wbf/ginext"
)

type JobHandler struct {
	service JobService
}

type JobService interface {
	Create(ctx context.Context, newJob *model.JobCreateData) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)                    // статус задачи
	Delete(ctx context.Context, id string) error                               // удалить как в базе, так и в minio
	LoadResult(ctx context.Context, id string) (*service.ResultFile, error)    // прям скачать результат
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) // получить список
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{
		service: svc,
	}
}

func (h JobHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h JobHandler) Create(ctx *ginext.Context) {
	var newJobRaw model.JobCreateData
	newJobRaw.WatermarkType = ctx.PostForm("watermark_type")
	newJobRaw.WatermarkText = ctx.PostForm("text")
	newJobRaw.Effects = ctx.PostFormArray("effects")

	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)
	newJobRaw.OrigImg = imageFile
	newJobRaw.OrigName = imageHeader.Filename
	newJobRaw.OrigImgSize = imageHeader.Size
	newJobRaw.OrigContentType = sniffContentType(imageFile)

	// парсинг ватермарка если есть - обязательность проверяет сервис по типу
	wmFile, wmHeader, err := ctx.Request.FormFile("watermark")
	if err == nil {
		defer closeFileFlow(wmFile)
		newJobRaw.WMImg = wmFile
		newJobRaw.WMImgSize = wmHeader.Size
		newJobRaw.WMContentType = sniffContentType(wmFile)
	}

	// передаем в сервис
	res, err := h.service.Create(ctx.Request.Context(), &newJobRaw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h JobHandler) GetAllJobs(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrIncorrectQuery.Error()})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) GetStatus(ctx *ginext.Context) {
	res, err := h.service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res.Data)

	ctx.Writer.Header().Set("Content-Type", res.ContentType)
	ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res.Data); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Int64("written", n).Str("job_id", id).Msg("Failed to write result response")
	}
}

func (h JobHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}
