// Package imageproc renders adjustment chains onto source images with disintegration/imaging.
package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // регистрирует декодер webp для image.Decode
)

const (
	defaultJPEGQuality = 95
	// maxPixels bounds the decoded source, 4 bytes per pixel in memory
	maxPixels = 1 << 26
)

var errNilStore = errors.New("transformer needs a resource store")

// ResourceStore is the part of storage.ResourceStore the transformer needs.
type ResourceStore interface {
	ReadBytes(ctx context.Context, h model.Handle) ([]byte, error)
	Store(ctx context.Context, data []byte, contentType string) (model.Handle, error)
}

// Transformer implements variant.Transformer. Every call decodes the source anew, so results never
// depend on previous renders.
type Transformer struct {
	store ResourceStore
}

func NewTransformer(store ResourceStore) (*Transformer, error) {
	if store == nil {
		return nil, errNilStore
	}
	return &Transformer{store: store}, nil
}

var _ variant.Transformer = (*Transformer)(nil)

func (t *Transformer) Transform(ctx context.Context, source model.Handle, specs []adjustment.Spec) (variant.Rendition, error) {
	data, err := t.store.ReadBytes(ctx, source)
	if err != nil {
		return variant.Rendition{}, &model.TransformError{Op: "read source", Err: err}
	}

	out, contentType, err := Render(data, specs)
	if err != nil {
		return variant.Rendition{}, err
	}
	if err := ctx.Err(); err != nil {
		return variant.Rendition{}, &model.TransformError{Op: "render", Err: err}
	}

	h, err := t.store.Store(ctx, out.Bytes, contentType)
	if err != nil {
		return variant.Rendition{}, &model.TransformError{Op: "store result", Err: err}
	}
	return variant.Rendition{Resource: h, Width: out.Width, Height: out.Height}, nil
}

// Output is an encoded render.
type Output struct {
	Bytes  []byte
	Width  int
	Height int
}

// Render applies specs in order to the encoded image in data. The result keeps the source format
// unless a format spec overrides it; sources imaging cannot encode (webp) fall back to PNG.
func Render(data []byte, specs []adjustment.Spec) (Output, string, error) {
	img, format, err := Decode(data)
	if err != nil {
		return Output{}, "", err
	}

	quality := defaultJPEGQuality
	for _, s := range specs {
		switch p := s.Params.(type) {
		case adjustment.Resize:
			img = resize(img, p)
		case adjustment.Crop:
			img, err = crop(img, p)
			if errors.Is(err, errCropOutside) {
				// прямоугольник из запроса не пересекает картинку - ошибка клиента, а не рендера
				return Output{}, "", &model.TransformError{Op: string(s.Kind()), Err: &model.ConfigurationError{Index: -1, Err: err}}
			}
			if err != nil {
				return Output{}, "", &model.TransformError{Op: string(s.Kind()), Err: err}
			}
		case adjustment.Flip:
			img = flip(img, p)
		case adjustment.Rotate:
			img = rotate(img, p)
		case adjustment.Quality:
			quality = p.Quality
		case adjustment.Format:
			format, err = imaging.FormatFromExtension(p.Format)
			if err != nil {
				return Output{}, "", &model.TransformError{Op: string(s.Kind()), Err: err}
			}
		default:
			return Output{}, "", &model.TransformError{Op: "apply", Err: fmt.Errorf("unsupported adjustment %q", s.Kind())}
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return Output{}, "", &model.TransformError{Op: "encode", Err: err}
	}

	return Output{
		Bytes:  buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, model.GetCType[format], nil
}

// Decode reads an image honouring the EXIF orientation and reports the output format to encode it
// back with.
func Decode(data []byte) (image.Image, imaging.Format, error) {
	if len(data) == 0 {
		return nil, 0, &model.TransformError{Op: "decode", Unreadable: true, Err: model.ErrEmptySource}
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, &model.TransformError{Op: "decode", Unreadable: true, Err: err}
	}
	if err := checkSize(cfg); err != nil {
		return nil, 0, &model.TransformError{Op: "decode", Unreadable: true, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, &model.TransformError{Op: "decode", Unreadable: true, Err: err}
	}

	format, err := imaging.FormatFromExtension(strings.ToLower(name))
	if err != nil {
		format = imaging.PNG
	}
	return img, format, nil
}

// Probe returns the content type and pixel size of an encoded image without decoding the pixels.
func Probe(data []byte) (string, int, int, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, &model.TransformError{Op: "probe", Unreadable: true, Err: err}
	}
	if err := checkSize(cfg); err != nil {
		return "", 0, 0, &model.TransformError{Op: "probe", Unreadable: true, Err: err}
	}
	return "image/" + name, cfg.Width, cfg.Height, nil
}

func checkSize(cfg image.Config) error {
	if cfg.Width > adjustment.MaxDimension || cfg.Height > adjustment.MaxDimension ||
		int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d", model.ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}
