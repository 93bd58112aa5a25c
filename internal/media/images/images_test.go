package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	data := testPNG(t, 120, 40)

	info, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, 120, info.Width)
	assert.Equal(t, 40, info.Height)
	assert.Equal(t, len(data), info.ByteLength)
	assert.Equal(t, "png", info.Format)
}

func TestInspect_Invalid(t *testing.T) {
	_, err := Inspect(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Inspect([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestBlurHash(t *testing.T) {
	hash, err := BlurHash(testPNG(t, 300, 200))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Same pixels, same hash.
	again, err := BlurHash(testPNG(t, 300, 200))
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	_, err = BlurHash([]byte{0x89, 'P', 'N', 'G'})
	assert.Error(t, err)
}

func TestCompressForUpload_Downscales(t *testing.T) {
	out, err := CompressForUpload(testPNG(t, 2400, 1200))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 500, cfg.Height)
}

func TestCompressForUpload_KeepsSmallImages(t *testing.T) {
	out, err := CompressForUpload(testPNG(t, 64, 300))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, maxDim int
		wantW, wantH int
	}{
		{100, 100, 1000, 100, 100},
		{2000, 1000, 1000, 1000, 500},
		{1000, 3000, 1000, 333, 1000},
		{5000, 1, 64, 64, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.maxDim)
		assert.Equal(t, tt.wantW, w, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "height for %dx%d", tt.w, tt.h)
	}
}
