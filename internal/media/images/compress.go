package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Upload limits for images sent to a vision model.
const (
	MaxUploadDimension = 1000
	UploadQuality      = 50
)

// CompressForUpload re-encodes an image as JPEG no larger than
// MaxUploadDimension on either side. Transparent areas become white.
func CompressForUpload(data []byte) ([]byte, error) {
	return Compress(data, MaxUploadDimension, UploadQuality)
}

// Compress re-encodes an image as JPEG within maxDim x maxDim at the given
// quality (1-100). Smaller images are not upscaled.
func Compress(data []byte, maxDim, quality int) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
