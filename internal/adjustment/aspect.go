package adjustment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrInvalidAspectRatio = errors.New("aspect ratio must look like W:H with positive integers")

	aspectRatioPattern = regexp.MustCompile(`^(\d+):(\d+)$`)
)

// AspectRatio is a W:H ratio such as 16:9. The zero value means "no ratio".
type AspectRatio struct {
	Width  int
	Height int
}

func NewAspectRatio(w, h int) (AspectRatio, error) {
	if w <= 0 || h <= 0 {
		return AspectRatio{}, ErrInvalidAspectRatio
	}
	return AspectRatio{Width: w, Height: h}, nil
}

func ParseAspectRatio(s string) (AspectRatio, error) {
	m := aspectRatioPattern.FindStringSubmatch(s)
	if m == nil {
		return AspectRatio{}, ErrInvalidAspectRatio
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return AspectRatio{}, ErrInvalidAspectRatio
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return AspectRatio{}, ErrInvalidAspectRatio
	}
	return NewAspectRatio(w, h)
}

func (a AspectRatio) IsZero() bool { return a.Width == 0 && a.Height == 0 }

func (a AspectRatio) Ratio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

func (a AspectRatio) String() string {
	if a.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d:%d", a.Width, a.Height)
}

func (a AspectRatio) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AspectRatio) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = AspectRatio{}
		return nil
	}
	parsed, err := ParseAspectRatio(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
