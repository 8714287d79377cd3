package imageproc

import (
	"image"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/disintegration/imaging"
)

// resize scales img according to r. Inset fits the image into the box keeping the aspect ratio,
// outbound fills the box and cuts the overflow (thumbnail). Without AllowUpscaling the result is
// never larger than the source.
func resize(img image.Image, r adjustment.Resize) image.Image {
	srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return img
	}

	if r.Mode == adjustment.ModeOutbound {
		return thumbnail(img, r)
	}

	w, h := insetBox(srcW, srcH, r.Width, r.Height)
	if w > adjustment.MaxDimension || h > adjustment.MaxDimension {
		// одна сторона задана, вторая при апскейле узкого исходника ушла за предел
		w, h = insetBox(srcW, srcH, min(w, adjustment.MaxDimension), min(h, adjustment.MaxDimension))
	}
	if !r.AllowUpscaling && (w > srcW || h > srcH) {
		return imaging.Clone(img)
	}
	if w == srcW && h == srcH {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// insetBox returns the largest size with the source aspect ratio that fits into the box.
// A zero box side means "unbounded".
func insetBox(srcW, srcH, boxW, boxH int) (int, int) {
	switch {
	case boxW > 0 && boxH > 0:
		// сравниваем соотношения сторон без float
		if srcW*boxH > srcH*boxW {
			return boxW, max(1, srcH*boxW/srcW)
		}
		return max(1, srcW*boxH/srcH), boxH
	case boxW > 0:
		return boxW, max(1, srcH*boxW/srcW)
	default:
		return max(1, srcW*boxH/srcH), boxH
	}
}

func thumbnail(img image.Image, r adjustment.Resize) image.Image {
	w, h := r.Width, r.Height
	if !r.AllowUpscaling {
		srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
		// уменьшаем рамку пропорционально, чтобы она влезла в исходник
		if w > srcW || h > srcH {
			w, h = insetBox(w, h, srcW, srcH)
		}
	}
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}
