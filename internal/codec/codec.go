// Package codec decodes image files into pixel buffers and encodes them back
package codec

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

const (
	MinQuality = 0
	MaxQuality = 100
)

// Adapter reads and writes images through an injected filesystem
type Adapter struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Adapter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Adapter{fs: fs}
}

// Decode opens path and decodes it (JPEG, PNG, GIF, TIFF, BMP), honouring EXIF orientation.
func (a *Adapter) Decode(path string) (*pixbuf.Buffer, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, model.NewPipelineError(model.ErrDecode, path, err)
	}
	defer closeFile(f)

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewPipelineError(model.ErrDecode, path, err)
	}

	return pixbuf.FromImage(img), nil
}

// Encode writes buf to path in the format implied by the extension.
// Quality is used by JPEG only. The destination is replaced atomically:
// on failure it is left untouched and no temp file survives.
func (a *Adapter) Encode(buf *pixbuf.Buffer, path string, quality int) error {
	if buf == nil {
		return model.NewPipelineError(model.ErrEncode, path, errors.New("nil buffer"))
	}
	if quality < MinQuality || quality > MaxQuality {
		return model.NewPipelineError(model.ErrEncode, path, fmt.Errorf("quality %d out of range [%d, %d]", quality, MinQuality, MaxQuality))
	}

	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return model.NewPipelineError(model.ErrEncode, path, err)
	}

	tmp, err := afero.TempFile(a.fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return model.NewPipelineError(model.ErrEncode, path, err)
	}
	tmpName := tmp.Name()

	if err := imaging.Encode(tmp, buf.Image(), format, imaging.JPEGQuality(quality)); err != nil {
		closeFile(tmp)
		a.removeTemp(tmpName)
		return model.NewPipelineError(model.ErrEncode, path, err)
	}
	if err := tmp.Close(); err != nil {
		a.removeTemp(tmpName)
		return model.NewPipelineError(model.ErrEncode, path, err)
	}

	if err := a.fs.Chmod(tmpName, 0o644); err != nil {
		a.removeTemp(tmpName)
		return model.NewPipelineError(model.ErrEncode, path, err)
	}

	if err := a.fs.Rename(tmpName, path); err != nil {
		a.removeTemp(tmpName)
		return model.NewPipelineError(model.ErrEncode, path, err)
	}
	return nil
}

func (a *Adapter) removeTemp(name string) {
	if err := a.fs.Remove(name); err != nil {
		log.Printf("Codec failed to remove temp file %q: %v", name, err)
	}
}

func closeFile(f afero.File) {
	if err := f.Close(); err != nil {
		log.Println("Codec failed to close file:", err)
	}
}
