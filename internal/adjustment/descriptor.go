package adjustment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/UnendingLoop/ImageVariants/internal/model"
)

var (
	errUnknownKind    = errors.New("unknown adjustment type")
	errMissingOption  = errors.New("required option is missing")
	errOptionType     = errors.New("option has the wrong type")
	errUnknownOption  = errors.New("unknown option")
	errNotWholeNumber = errors.New("option must be a whole number")
)

// FromRequest turns a declarative descriptor into a validated Spec. Failures are
// *model.ConfigurationError with Index -1; FromRequests fills in the index.
func FromRequest(d model.AdjustmentRequest) (Spec, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(d.Type)))
	if !KindsMap[kind] {
		return Spec{}, &model.ConfigurationError{Index: -1, Field: "type", Err: fmt.Errorf("%w: %q", errUnknownKind, d.Type)}
	}

	o := &options{raw: d.Options, seen: map[string]bool{}}
	params, err := o.params(kind)
	if err != nil {
		return Spec{}, err
	}
	if field := o.unknown(); field != "" {
		return Spec{}, &model.ConfigurationError{Index: -1, Field: field, Err: errUnknownOption}
	}

	spec, err := New(params)
	if err != nil {
		return Spec{}, &model.ConfigurationError{Index: -1, Err: err}
	}
	return spec, nil
}

// FromRequests builds a chain from descriptors, stopping at the first malformed one.
func FromRequests(ds []model.AdjustmentRequest) (*Chain, error) {
	c := NewChain()
	for i, d := range ds {
		spec, err := FromRequest(d)
		if err != nil {
			var cfgErr *model.ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Index = i
			}
			return nil, err
		}
		c.Insert(spec)
	}
	return c, nil
}

// ToRequest is the inverse of FromRequest; zero-valued options are left out.
func ToRequest(s Spec) model.AdjustmentRequest {
	opts := map[string]any{}
	switch p := s.Params.(type) {
	case Resize:
		putInt(opts, "width", p.Width)
		putInt(opts, "height", p.Height)
		if p.Mode != "" {
			opts["mode"] = p.Mode
		}
		if p.AllowUpscaling {
			opts["allow_upscaling"] = true
		}
	case Crop:
		putInt(opts, "x", p.X)
		putInt(opts, "y", p.Y)
		putInt(opts, "width", p.Width)
		putInt(opts, "height", p.Height)
		if !p.AspectRatio.IsZero() {
			opts["aspect_ratio"] = p.AspectRatio.String()
		}
	case Flip:
		if p.Horizontal {
			opts["horizontal"] = true
		}
		if p.Vertical {
			opts["vertical"] = true
		}
	case Rotate:
		opts["degrees"] = p.Degrees
	case Quality:
		opts["quality"] = p.Quality
	case Format:
		opts["format"] = p.Format
	}
	return model.AdjustmentRequest{Type: string(s.Kind()), Options: opts}
}

// Requests renders the chain in its declarative form, in application order.
func (c *Chain) Requests() []model.AdjustmentRequest {
	specs := c.Ordered()
	res := make([]model.AdjustmentRequest, 0, len(specs))
	for _, s := range specs {
		res = append(res, ToRequest(s))
	}
	return res
}

func putInt(m map[string]any, key string, v int) {
	if v != 0 {
		m[key] = v
	}
}

//--------------------

type options struct {
	raw  map[string]any
	seen map[string]bool
}

func (o *options) params(kind Kind) (Params, error) {
	switch kind {
	case KindResize:
		var p Resize
		var err error
		if p.Width, _, err = o.intOpt("width"); err != nil {
			return nil, err
		}
		if p.Height, _, err = o.intOpt("height"); err != nil {
			return nil, err
		}
		if p.Mode, _, err = o.stringOpt("mode"); err != nil {
			return nil, err
		}
		if p.AllowUpscaling, _, err = o.boolOpt("allow_upscaling"); err != nil {
			return nil, err
		}
		return p, nil
	case KindCrop:
		var p Crop
		var err error
		if p.X, _, err = o.intOpt("x"); err != nil {
			return nil, err
		}
		if p.Y, _, err = o.intOpt("y"); err != nil {
			return nil, err
		}
		if p.Width, _, err = o.intOpt("width"); err != nil {
			return nil, err
		}
		if p.Height, _, err = o.intOpt("height"); err != nil {
			return nil, err
		}
		ratio, ok, err := o.stringOpt("aspect_ratio")
		if err != nil {
			return nil, err
		}
		if ok {
			if p.AspectRatio, err = ParseAspectRatio(ratio); err != nil {
				return nil, &model.ConfigurationError{Index: -1, Field: "aspect_ratio", Err: err}
			}
		}
		return p, nil
	case KindFlip:
		var p Flip
		var err error
		if p.Horizontal, _, err = o.boolOpt("horizontal"); err != nil {
			return nil, err
		}
		if p.Vertical, _, err = o.boolOpt("vertical"); err != nil {
			return nil, err
		}
		return p, nil
	case KindRotate:
		deg, err := o.requiredInt("degrees")
		if err != nil {
			return nil, err
		}
		return Rotate{Degrees: deg}, nil
	case KindQuality:
		q, err := o.requiredInt("quality")
		if err != nil {
			return nil, err
		}
		return Quality{Quality: q}, nil
	case KindFormat:
		f, ok, err := o.stringOpt("format")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &model.ConfigurationError{Index: -1, Field: "format", Err: errMissingOption}
		}
		f = strings.ToLower(f)
		if f == "jpg" {
			f = "jpeg"
		}
		return Format{Format: f}, nil
	}
	return nil, &model.ConfigurationError{Index: -1, Field: "type", Err: errUnknownKind}
}

func (o *options) lookup(name string) (any, bool) {
	o.seen[name] = true
	v, ok := o.raw[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (o *options) requiredInt(name string) (int, error) {
	v, ok, err := o.intOpt(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &model.ConfigurationError{Index: -1, Field: name, Err: errMissingOption}
	}
	return v, nil
}

func (o *options) intOpt(name string) (int, bool, error) {
	raw, ok := o.lookup(name)
	if !ok {
		return 0, false, nil
	}
	fail := func(err error) (int, bool, error) {
		return 0, true, &model.ConfigurationError{Index: -1, Field: name, Err: err}
	}

	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case uint64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return fail(errNotWholeNumber)
		}
		return int(v), true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return fail(errNotWholeNumber)
		}
		return int(n), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fail(errOptionType)
		}
		return n, true, nil
	}
	return fail(errOptionType)
}

func (o *options) boolOpt(name string) (bool, bool, error) {
	raw, ok := o.lookup(name)
	if !ok {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b, true, nil
		}
	}
	return false, true, &model.ConfigurationError{Index: -1, Field: name, Err: errOptionType}
}

func (o *options) stringOpt(name string) (string, bool, error) {
	raw, ok := o.lookup(name)
	if !ok {
		return "", false, nil
	}
	s, isStr := raw.(string)
	if !isStr {
		return "", true, &model.ConfigurationError{Index: -1, Field: name, Err: errOptionType}
	}
	return strings.TrimSpace(s), true, nil
}

func (o *options) unknown() string {
	keys := make([]string, 0, len(o.raw))
	for k := range o.raw {
		if !o.seen[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	slices.Sort(keys)
	return keys[0]
}
