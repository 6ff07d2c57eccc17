package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultJPEGQuality = 80
	minJPEGQuality     = 40
	jpegQualityStep    = 10
)

var errImageNotDecodable = errors.New("storage: image cannot be decoded")

// ImageCompression re-encodes uploaded images as JPEG. A zero MaxDimension leaves
// images as uploaded.
type ImageCompression struct {
	MaxDimension int
	MaxBytes     int64
	Quality      int
}

func (c ImageCompression) enabled() bool {
	return c.MaxDimension > 0
}

// compress scales data so neither edge exceeds MaxDimension and encodes it as JPEG,
// stepping quality down until the result fits MaxBytes or the quality floor is hit.
func (c ImageCompression) compress(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errImageNotDecodable, err)
	}
	dst := flatten(src, c.MaxDimension)

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	var out bytes.Buffer
	for {
		out.Reset()
		if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("storage: encode jpeg: %w", err)
		}
		if c.MaxBytes <= 0 || int64(out.Len()) <= c.MaxBytes || quality <= minJPEGQuality {
			return out.Bytes(), nil
		}
		quality = max(quality-jpegQualityStep, minJPEGQuality)
	}
}

// flatten draws src onto a white canvas no larger than maxDim on either edge.
// JPEG carries no alpha channel.
func flatten(src image.Image, maxDim int) *image.RGBA {
	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, int(math.Round(float64(h)*float64(maxDim)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxDim)/float64(h)))), maxDim
}
