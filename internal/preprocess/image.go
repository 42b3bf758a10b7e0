// Package preprocess applies the deterministic per-profile image transform
// (resize, adaptive contrast, binarization) before a page image is sent for
// recognition. Given the same raster and profile, output is identical.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"

	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/profile"
)

// Result is a re-encoded, recognition-ready image.
type Result struct {
	MimeType string
	Encoded  string
}

const (
	// Originals with a luminance spread below this are treated as flat or
	// faint scans and binarized on the non-economy profiles.
	flatStdDev = 42.0

	jpegQuality = 72
)

// contrastTargets maps each profile to its target luminance standard
// deviation and maximum contrast gain.
var contrastTargets = map[model.Profile]struct {
	target  float64
	maxGain float64
}{
	model.ProfileEconomy:  {target: 44, maxGain: 1.4},
	model.ProfileBalanced: {target: 56, maxGain: 1.8},
	model.ProfileAccuracy: {target: 66, maxGain: 2.2},
}

// ForProfile transforms one source image according to the profile policy.
func ForProfile(img model.ImageInput, pol profile.Policy) (Result, error) {
	raw, err := base64.StdEncoding.DecodeString(img.Encoded)
	if err != nil {
		return Result{}, eris.Wrapf(err, "preprocess: decode base64 %s", img.Name)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, eris.Wrapf(err, "preprocess: decode image %s", img.Name)
	}

	rgba := rescale(src, pol.MaxImageDim)
	mean, std := luminanceStats(rgba)

	ct := contrastTargets[pol.Profile]
	gain := 1.0
	if std > 0 {
		gain = ct.target / std
	}
	gain = clampF(gain, 0.85, ct.maxGain)
	applyContrast(rgba, mean, gain)

	// Flat or faint scans get binarized on the higher-fidelity profiles.
	if pol.Profile != model.ProfileEconomy && std < flatStdDev {
		threshold := clampF(mean, 70, 200)
		if pol.Profile == model.ProfileAccuracy {
			threshold -= 10
		}
		binarize(rgba, threshold)
	}

	var buf bytes.Buffer
	mime := "image/png"
	if pol.Profile == model.ProfileEconomy {
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, rgba)
	}
	if err != nil {
		return Result{}, eris.Wrapf(err, "preprocess: encode %s", img.Name)
	}

	return Result{
		MimeType: mime,
		Encoded:  base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// rescale resizes so the longer dimension does not exceed maxDim. Images are
// never upscaled.
func rescale(src image.Image, maxDim int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	factor := 1.0
	if longer := max(w, h); maxDim > 0 && longer > maxDim {
		factor = float64(maxDim) / float64(longer)
	}

	dw := int(math.Round(float64(w) * factor))
	dh := int(math.Round(float64(h) * factor))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// luminanceStats computes the mean and standard deviation of per-pixel
// luminance using the standard Rec. 601 weights.
func luminanceStats(img *image.RGBA) (mean, std float64) {
	pix := img.Pix
	n := len(pix) / 4
	if n == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for i := 0; i < len(pix); i += 4 {
		l := 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
		sum += l
		sumSq += l * l
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// applyContrast stretches all three channels uniformly around the luminance
// mean.
func applyContrast(img *image.RGBA, mean, gain float64) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := mean + (float64(pix[i+c])-mean)*gain
			pix[i+c] = clampByte(v)
		}
	}
}

// binarize thresholds on adjusted luminance.
func binarize(img *image.RGBA, threshold float64) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		l := 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
		var v byte
		if l >= threshold {
			v = 255
		}
		pix[i], pix[i+1], pix[i+2] = v, v, v
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(math.Round(v))
}
