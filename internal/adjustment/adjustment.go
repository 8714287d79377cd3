// Package adjustment describes single image transformations and the ordered chains they form.
package adjustment

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindCrop    Kind = "crop"
	KindResize  Kind = "resize"
	KindFlip    Kind = "flip"
	KindRotate  Kind = "rotate"
	KindQuality Kind = "quality"
	KindFormat  Kind = "format"
)

var KindsMap = map[Kind]bool{
	KindCrop:    true,
	KindResize:  true,
	KindFlip:    true,
	KindRotate:  true,
	KindQuality: true,
	KindFormat:  true,
}

// Resize modes. Inset fits the image into the box, outbound fills the box and crops the overflow
// (thumbnail behaviour).
const (
	ModeInset    = "inset"
	ModeOutbound = "outbound"
)

// MaxDimension bounds every side of a rendered image and of a decoded source.
const MaxDimension = 16384

var OutputFormatsMap = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
}

var (
	errNoDimensions      = errors.New("width or height must be positive")
	errNegativeDimension = errors.New("dimensions must not be negative")
	errTooLarge          = fmt.Errorf("dimensions must not exceed %d", MaxDimension)
	errUnknownMode       = errors.New("unknown resize mode")
	errOutboundBox       = errors.New("outbound mode needs both width and height")
	errEmptyCrop         = errors.New("crop needs width and height or an aspect ratio")
	errEmptyFlip         = errors.New("flip needs horizontal or vertical")
	errRotateAngle       = errors.New("rotation must be 90, 180 or 270 degrees")
	errQualityRange      = errors.New("quality must be within 1..100")
	errUnknownFormat     = errors.New("unsupported output format")
	errNilAdjustment     = errors.New("nil adjustment")
)

// Params holds the kind-specific parameters of one adjustment. Implementations are plain values
// with comparable fields so that two specs can be compared with ==.
type Params interface {
	Kind() Kind
	Validate() error
}

type Resize struct {
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Mode           string `json:"mode,omitempty"`
	AllowUpscaling bool   `json:"allow_upscaling,omitempty"`
}

func (Resize) Kind() Kind { return KindResize }

func (r Resize) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return errNegativeDimension
	}
	if r.Width == 0 && r.Height == 0 {
		return errNoDimensions
	}
	if r.Width > MaxDimension || r.Height > MaxDimension {
		return errTooLarge
	}
	switch r.Mode {
	case "", ModeInset:
	case ModeOutbound:
		if r.Width == 0 || r.Height == 0 {
			return errOutboundBox
		}
	default:
		return errUnknownMode
	}
	return nil
}

// Crop cuts either the explicit rectangle or, when AspectRatio is set, the largest centered
// rectangle of that ratio.
type Crop struct {
	X           int         `json:"x,omitempty"`
	Y           int         `json:"y,omitempty"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	AspectRatio AspectRatio `json:"aspect_ratio,omitempty"`
}

func (Crop) Kind() Kind { return KindCrop }

func (c Crop) Validate() error {
	if c.X < 0 || c.Y < 0 || c.Width < 0 || c.Height < 0 {
		return errNegativeDimension
	}
	// за пределами MaxDimension прямоугольник гарантированно вне изображения
	if c.X > MaxDimension || c.Y > MaxDimension || c.Width > MaxDimension || c.Height > MaxDimension {
		return errTooLarge
	}
	if !c.AspectRatio.IsZero() {
		return nil
	}
	if c.Width == 0 || c.Height == 0 {
		return errEmptyCrop
	}
	return nil
}

type Flip struct {
	Horizontal bool `json:"horizontal,omitempty"`
	Vertical   bool `json:"vertical,omitempty"`
}

func (Flip) Kind() Kind { return KindFlip }

func (f Flip) Validate() error {
	if !f.Horizontal && !f.Vertical {
		return errEmptyFlip
	}
	return nil
}

// Rotate turns the image counter-clockwise.
type Rotate struct {
	Degrees int `json:"degrees"`
}

func (Rotate) Kind() Kind { return KindRotate }

func (r Rotate) Validate() error {
	switch r.Degrees {
	case 90, 180, 270:
		return nil
	}
	return errRotateAngle
}

// Quality applies to lossy encoders only (JPEG).
type Quality struct {
	Quality int `json:"quality"`
}

func (Quality) Kind() Kind { return KindQuality }

func (q Quality) Validate() error {
	if q.Quality < 1 || q.Quality > 100 {
		return errQualityRange
	}
	return nil
}

type Format struct {
	Format string `json:"format"`
}

func (Format) Kind() Kind { return KindFormat }

func (f Format) Validate() error {
	if !OutputFormatsMap[f.Format] {
		return errUnknownFormat
	}
	return nil
}

// Spec is one positioned adjustment. It is a value: chains replace specs, they never mutate the
// params of one in place.
type Spec struct {
	Position int
	Params   Params
}

// New validates p and wraps it into a Spec. The position is assigned by the chain.
func New(p Params) (Spec, error) {
	params, err := copyParams(p)
	if err != nil {
		return Spec{}, err
	}
	if err := params.Validate(); err != nil {
		return Spec{}, fmt.Errorf("%s: %w", params.Kind(), err)
	}
	return Spec{Params: params}, nil
}

// MustNew is New for statically known params.
func MustNew(p Params) Spec {
	s, err := New(p)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Spec) Kind() Kind {
	if s.Params == nil {
		return ""
	}
	return s.Params.Kind()
}

// SameKind ignores parameters.
func (s Spec) SameKind(other Spec) bool {
	return s.Kind() == other.Kind()
}

func (s Spec) String() string {
	return fmt.Sprintf("%d:%s%+v", s.Position, s.Kind(), s.Params)
}

// copyParams matches on the concrete kind and returns a detached value copy.
func copyParams(p Params) (Params, error) {
	switch v := p.(type) {
	case Resize:
		return v, nil
	case *Resize:
		return deref(v)
	case Crop:
		return v, nil
	case *Crop:
		return deref(v)
	case Flip:
		return v, nil
	case *Flip:
		return deref(v)
	case Rotate:
		return v, nil
	case *Rotate:
		return deref(v)
	case Quality:
		return v, nil
	case *Quality:
		return deref(v)
	case Format:
		return v, nil
	case *Format:
		return deref(v)
	case nil:
		return nil, errNilAdjustment
	default:
		return nil, fmt.Errorf("unsupported adjustment type %T", p)
	}
}

// deref copies the value behind a typed pointer; a typed nil is as good as no adjustment.
func deref[T Params](v *T) (Params, error) {
	if v == nil {
		return nil, errNilAdjustment
	}
	return *v, nil
}
