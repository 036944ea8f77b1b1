package model

import (
	"errors"
	"fmt"
)

// Pipeline error kinds. Match them with errors.Is.
var (
	ErrDecode = errors.New("decode error")
	ErrEncode = errors.New("encode error")
	ErrRaster = errors.New("raster error")
)

var (
	ErrUnsupportedBlend = errors.New("unsupported blend mode")
	ErrUnknownEffect    = errors.New("unknown effect")
)

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")    // 500
	ErrIncorrectQuery    error = errors.New("incorrect query parameters")               // 400
	ErrIncorrectID       error = errors.New("incorrect job UUID")                       // 400
	ErrJobNotFound       error = errors.New("specified job UUID doesn't exist")         // 404
	ErrResultNotReady    error = errors.New("requested image is not processed yet")     // 404
	ErrIncorrectWMType   error = errors.New("watermark type must be 'text' or 'image'") // 400
	ErrEmptySource       error = errors.New("empty/incorrect source image provided")    // 400
	ErrEmptyWMark        error = errors.New("empty/incorrect watermark provided")       // 400
	ErrEmptyWMText       error = errors.New("empty watermark text provided")            // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                 // 400
)

// PipelineError - тегированная ошибка конвейера: вид ошибки + над чем выполнялась операция
type PipelineError struct {
	Kind   error
	Target string
	Err    error
}

func NewPipelineError(kind error, target string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Target: target, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v %q: %v", e.Kind, e.Target, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
