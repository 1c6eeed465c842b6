package cards

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"golang.org/x/image/webp"
)

func init() {
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// ParseAspectRatio parses a "W:H" string into its two components.
func ParseAspectRatio(s string) (w, h int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q", s)
	}
	w, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	h, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q: must be positive", s)
	}
	return w, h, nil
}

// centerCropRect returns the largest rectangle of the given aspect ratio
// (targetW:targetH) that fits centered inside a srcW x srcH image.
func centerCropRect(srcW, srcH, targetW, targetH int) (cropW, cropH int) {
	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(targetW) / float64(targetH)

	if srcRatio > targetRatio {
		// Source is wider than target: full height, narrower width.
		cropH = srcH
		cropW = int(float64(srcH) * targetRatio)
	} else {
		cropW = srcW
		cropH = int(float64(srcW) / targetRatio)
	}
	if cropW > srcW {
		cropW = srcW
	}
	if cropH > srcH {
		cropH = srcH
	}
	return cropW, cropH
}

// Transcode decodes a source image, center-crops it to spec's aspect
// ratio, resizes its long side to spec.LongSide, and encodes it in
// spec.Format. It never touches the disk cache — buildOne writes its
// result through the cache's atomic write while holding the key's lock.
func Transcode(sourcePath string, spec TransformSpec) ([]byte, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	targetW, targetH, err := ParseAspectRatio(spec.AspectRatio)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	cropW, cropH := centerCropRect(bounds.Dx(), bounds.Dy(), targetW, targetH)
	cropped := imaging.CropCenter(img, cropW, cropH)

	var outW, outH int
	if targetW >= targetH {
		outW = spec.LongSide
		outH = int(float64(spec.LongSide) * float64(targetH) / float64(targetW))
	} else {
		outH = spec.LongSide
		outW = int(float64(spec.LongSide) * float64(targetW) / float64(targetH))
	}
	resized := imaging.Resize(cropped, outW, outH, imaging.Lanczos)

	var buf bytes.Buffer
	switch spec.Format {
	case "avif":
		if err := avif.Encode(&buf, resized, avif.Options{Quality: spec.Quality, Speed: spec.Speed}); err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: spec.Quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported cache format %q", spec.Format)
	}
	return buf.Bytes(), nil
}

// ValidateArtifact re-decodes a cached artifact and confirms it decodes
// successfully and its dimensions match spec's target. Used when
// VALIDATE_CACHE_HITS_P is enabled to detect a corrupted cache hit before
// serving it.
func ValidateArtifact(data []byte, spec TransformSpec) error {
	if len(data) == 0 {
		return fmt.Errorf("empty artifact")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("artifact does not decode: %w", err)
	}
	targetW, targetH, err := ParseAspectRatio(spec.AspectRatio)
	if err != nil {
		return err
	}
	var wantW, wantH int
	if targetW >= targetH {
		wantW = spec.LongSide
		wantH = int(float64(spec.LongSide) * float64(targetH) / float64(targetW))
	} else {
		wantH = spec.LongSide
		wantW = int(float64(spec.LongSide) * float64(targetW) / float64(targetH))
	}
	b := img.Bounds()
	if b.Dx() != wantW || b.Dy() != wantH {
		return fmt.Errorf("artifact dimensions %dx%d do not match expected %dx%d", b.Dx(), b.Dy(), wantW, wantH)
	}
	return nil
}
