// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type VariantState string

const (
	StateUninitialized VariantState = "uninitialized"
	StateRendering     VariantState = "rendering"
	StateReady         VariantState = "ready"
	StateFailed        VariantState = "failed"
	StateDestroyed     VariantState = "destroyed"
)

//---------------------

// Original is an uploaded source image. Variants only ever point back to it.
type Original struct {
	UID         uuid.UUID  `json:"uid"`
	Title       string     `json:"title"`
	Caption     string     `json:"caption,omitempty"`
	ResourceKey string     `json:"-"`
	ContentType string     `json:"content_type"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// VariantRecord is the persisted form of a rendered variant.
type VariantRecord struct {
	UID         uuid.UUID       `json:"uid"`
	OriginalUID uuid.UUID       `json:"original_uid"`
	PresetID    string          `json:"preset,omitempty"`
	Name        string          `json:"name,omitempty"`
	ResourceKey string          `json:"-"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Adjustments DescriptorSlice `json:"adjustments"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

//-------------------

type OriginalCreateData struct {
	Title       string
	Caption     string
	ContentType string
	Data        []byte
}

// VariantCreateData carries either a preset id or inline adjustments. With neither the variant is
// a plain copy of the original.
type VariantCreateData struct {
	Preset      string              `json:"preset"`
	Name        string              `json:"name"`
	Adjustments []AdjustmentRequest `json:"adjustments"`
}

// AdjustmentRequest is the wire/DB form of one adjustment.
type AdjustmentRequest struct {
	Type    string         `json:"type" yaml:"type"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// UploadEvent is published for every stored original; the worker pre-renders warm presets for it.
type UploadEvent struct {
	OriginalUID uuid.UUID `json:"original_uid"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
}

type PresetInfo struct {
	ID          string              `json:"id"`
	Label       string              `json:"label"`
	Warm        bool                `json:"warm"`
	Adjustments []AdjustmentRequest `json:"adjustments"`
}

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	BMP  = "image/bmp"
	TIFF = "image/tiff"
	WEBP = "image/webp"
)

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
	WEBP: true,
}

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	BMP:  ".bmp",
	TIFF: ".tiff",
	WEBP: ".webp",
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
	imaging.BMP:  BMP,
	imaging.TIFF: TIFF,
}

//--------------------

// Handle is an opaque reference to a stored binary resource. It doubles as the object key.
type Handle string

// NewResourceKey builds a fresh object key for the given content type.
func NewResourceKey(prefix, contentType string) Handle {
	return Handle(prefix + uuid.NewString() + GetImageFileExt[contentType])
}

//--------------------

// DescriptorSlice is stored as JSONB.
type DescriptorSlice []AdjustmentRequest

func (s *DescriptorSlice) Scan(value any) error {
	if value == nil {
		*s = DescriptorSlice{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("invalid type for DescriptorSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to DescriptorSlice: %w", err)
	}
	return nil
}

func (s DescriptorSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DescriptorSlice to JSONB: %w", err)
	}

	return res, nil
}
