package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize is the thumbnail edge used for BlurHash; a 64px image gives
// the same hash as the full-size one in a fraction of the time.
const blurHashSize = 64

// BlurHash computes a 4x3 component BlurHash for an encoded image.
func BlurHash(data []byte) (string, error) {
	img, err := decode(data)
	if err != nil {
		return "", err
	}

	hash, err := blurhash.Encode(4, 3, thumbnail(img, blurHashSize))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail scales img to fit within size x size using nearest neighbor.
func thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), size)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
