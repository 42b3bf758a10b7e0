package preprocess

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/profile"
)

func encodeTestImage(t *testing.T, img image.Image) model.ImageInput {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return model.ImageInput{
		Name:     "page.png",
		MimeType: "image/png",
		ByteSize: int64(buf.Len()),
		ModTime:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Encoded:  base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
}

func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: uint8((x*7 + y*11) % 256)})
		}
	}
	return img
}

func flatImage(w, h int, v uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func policyFor(p model.Profile, maxDim int) profile.Policy {
	return profile.Policy{Profile: p, MaxImageDim: maxDim}
}

func decodeResult(t *testing.T, res Result) image.Image {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(res.Encoded)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestForProfileEncoding(t *testing.T) {
	src := encodeTestImage(t, gradientImage(120, 80))

	economy, err := ForProfile(src, policyFor(model.ProfileEconomy, 1280))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", economy.MimeType)

	balanced, err := ForProfile(src, policyFor(model.ProfileBalanced, 1600))
	require.NoError(t, err)
	assert.Equal(t, "image/png", balanced.MimeType)
}

func TestForProfileDeterministic(t *testing.T) {
	src := encodeTestImage(t, gradientImage(200, 140))
	pol := policyFor(model.ProfileBalanced, 1600)

	a, err := ForProfile(src, pol)
	require.NoError(t, err)
	b, err := ForProfile(src, pol)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestForProfileDownscales(t *testing.T) {
	src := encodeTestImage(t, gradientImage(400, 200))

	res, err := ForProfile(src, policyFor(model.ProfileBalanced, 100))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestForProfileNeverUpscales(t *testing.T) {
	src := encodeTestImage(t, gradientImage(60, 40))

	res, err := ForProfile(src, policyFor(model.ProfileBalanced, 1600))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, 60, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())
}

func TestForProfileBinarizesFlatScans(t *testing.T) {
	src := encodeTestImage(t, flatImage(64, 64, 128))

	res, err := ForProfile(src, policyFor(model.ProfileBalanced, 1600))
	require.NoError(t, err)

	out := decodeResult(t, res)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			v := r >> 8
			require.Equal(t, v, g>>8)
			require.Equal(t, v, b>>8)
			require.True(t, v == 0 || v == 255, "binarized pixel must be black or white, got %d", v)
		}
	}
}

func TestForProfileEconomySkipsBinarization(t *testing.T) {
	src := encodeTestImage(t, flatImage(64, 64, 128))

	res, err := ForProfile(src, policyFor(model.ProfileEconomy, 1280))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.MimeType)
}

func TestForProfileRejectsBadInput(t *testing.T) {
	_, err := ForProfile(model.ImageInput{Name: "x", Encoded: "not base64!!"}, policyFor(model.ProfileEconomy, 1280))
	assert.Error(t, err)

	_, err = ForProfile(model.ImageInput{Name: "x", Encoded: base64.StdEncoding.EncodeToString([]byte("not an image"))}, policyFor(model.ProfileEconomy, 1280))
	assert.Error(t, err)
}

func TestBatchPreservesOrder(t *testing.T) {
	images := []model.ImageInput{
		encodeTestImage(t, gradientImage(100, 60)),
		encodeTestImage(t, gradientImage(60, 100)),
		encodeTestImage(t, gradientImage(80, 80)),
	}

	results, err := Batch(context.Background(), images, policyFor(model.ProfileBalanced, 1600), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	dims := [][2]int{{100, 60}, {60, 100}, {80, 80}}
	for i, res := range results {
		out := decodeResult(t, res)
		assert.Equal(t, dims[i][0], out.Bounds().Dx(), "image %d width", i)
		assert.Equal(t, dims[i][1], out.Bounds().Dy(), "image %d height", i)
	}
}

func TestBatchPropagatesError(t *testing.T) {
	images := []model.ImageInput{
		encodeTestImage(t, gradientImage(100, 60)),
		{Name: "broken.png", Encoded: "%%%"},
	}

	_, err := Batch(context.Background(), images, policyFor(model.ProfileBalanced, 1600), 2)
	assert.Error(t, err)
}
