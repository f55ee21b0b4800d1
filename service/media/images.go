package media

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"

	// Extra upload formats beyond the stdlib jpeg/png/gif decoders imaging pulls in.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Image files are handled the same way by every implementation: decoding and
// encoding go through imaging, the format follows the file extension.
func readImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, xerrors.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

func writeImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xerrors.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return xerrors.Errorf("save image %s: %w", path, err)
	}
	return nil
}

// Fit resizes img to exactly width x height with bilinear filtering, unless it
// already has that size.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}
