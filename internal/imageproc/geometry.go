package imageproc

import (
	"errors"
	"image"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/disintegration/imaging"
)

var errCropOutside = errors.New("crop rectangle lies outside the image")

// crop cuts the explicit rectangle (clipped to the image) or the largest centered area with the
// requested aspect ratio.
func crop(img image.Image, c adjustment.Crop) (image.Image, error) {
	b := img.Bounds()

	if !c.AspectRatio.IsZero() {
		w, h := b.Dx(), b.Dy()
		if w*c.AspectRatio.Height > h*c.AspectRatio.Width {
			w = max(1, h*c.AspectRatio.Width/c.AspectRatio.Height)
		} else {
			h = max(1, w*c.AspectRatio.Height/c.AspectRatio.Width)
		}
		return imaging.CropCenter(img, w, h), nil
	}

	rect := image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height).Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, errCropOutside
	}
	return imaging.Crop(img, rect), nil
}

func flip(img image.Image, f adjustment.Flip) image.Image {
	out := img
	if f.Horizontal {
		out = imaging.FlipH(out)
	}
	if f.Vertical {
		out = imaging.FlipV(out)
	}
	return out
}

func rotate(img image.Image, r adjustment.Rotate) image.Image {
	switch r.Degrees {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	}
	return img
}
