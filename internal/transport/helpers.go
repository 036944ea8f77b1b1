package transport

import (
	"errors"
	"io"
	"log"
	"mime/multipart"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/gabriel-vasile/mimetype"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrJobNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrIncorrectWMType),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrEmptyWMark),
		errors.Is(err, model.ErrEmptyWMText),
		errors.Is(err, model.ErrUnknownEffect),
		errors.Is(err, model.ErrUnsupportedFormat):
		return 400
	default:
		return 500
	}
}

// sniffContentType определяет MIME по первым байтам и перематывает файл в начало
func sniffContentType(f multipart.File) string {
	mt, err := mimetype.DetectReader(f)
	if _, sErr := f.Seek(0, io.SeekStart); sErr != nil {
		log.Println("Handler failed to rewind uploaded file:", sErr)
		return ""
	}
	if err != nil {
		return ""
	}
	return mt.String()
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
