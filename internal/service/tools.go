package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
	if req.Sort == "" {
		req.Sort = model.ByCreated
	}
	if req.Order == "" {
		req.Order = model.OrderDESC
	}

	// Валидируем непустое поле типа сортировки
	req.Sort = strings.ToLower(req.Sort)
	req.Sort = strings.TrimSpace(req.Sort)
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "job_uid"
	case strings.Contains(req.Sort, model.ByCreated):
		req.Sort = "created_at"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем непустой порядок
	req.Order = strings.ToLower(req.Order)
	req.Order = strings.TrimSpace(req.Order)
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	case strings.Contains(req.Order, model.OrderDESC):
		req.Order = "DESC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

func validateNormalizeJobInfo(raw *model.JobCreateData, clean *model.Job) error {
	// корректно ли указан тип ватермарка
	clean.WatermarkType = model.WatermarkType(strings.ToLower(strings.TrimSpace(raw.WatermarkType)))
	if !model.WatermarkTypeMap[clean.WatermarkType] {
		return model.ErrIncorrectWMType
	}

	// корректен ли исходник
	if raw.OrigImg == nil || raw.OrigImgSize <= 0 {
		return model.ErrEmptySource
	}
	if !model.InImageTypeMap[raw.OrigContentType] {
		return fmt.Errorf("source image %q: %w", raw.OrigContentType, model.ErrUnsupportedFormat)
	}

	// текст или картинка - в зависимости от типа
	switch clean.WatermarkType {
	case model.WMText:
		if strings.TrimSpace(raw.WatermarkText) == "" {
			return model.ErrEmptyWMText
		}
		clean.WatermarkText = raw.WatermarkText
	case model.WMImage:
		if raw.WMImg == nil || raw.WMImgSize <= 0 {
			return model.ErrEmptyWMark
		}
		if !model.InImageTypeMap[raw.WMContentType] {
			return fmt.Errorf("watermark image %q: %w", raw.WMContentType, model.ErrUnsupportedFormat)
		}
	}

	// эффекты: приводим к каноническому порядку и именам
	effects, err := imageproc.ParseEffects(raw.Effects)
	if err != nil {
		return err
	}
	clean.Effects = effects.Names()

	clean.SourceName = sourceName(raw.OrigName, raw.OrigContentType)
	return nil
}

// sourceName - имя исходника без пути; пустое имя заменяется на image.<ext>
func sourceName(orig, contentType string) string {
	name := filepath.Base(strings.ReplaceAll(orig, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "image" + model.GetImageFileExt[contentType]
	}
	return name
}
