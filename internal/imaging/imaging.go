// Package imaging validates uploaded photos, downscales oversized ones and
// extracts EXIF capture metadata.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// DefaultMaxDimension is the maximum width or height for stored images.
const DefaultMaxDimension = 2048

// JPEGQuality is the compression quality for re-encoded JPEGs.
const JPEGQuality = 85

// Accepted MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
)

// extensions lists accepted file extensions per MIME type. The first one is
// canonical.
var extensions = map[string][]string{
	MIMEJPEG: {".jpg", ".jpeg"},
	MIMEPNG:  {".png"},
	MIMEWebP: {".webp"},
}

// ErrUnsupported is returned for content that is not a JPEG, PNG or WebP image.
var ErrUnsupported = errors.New("unsupported image format (only JPEG, PNG and WebP accepted)")

// Result contains the processed image data.
type Result struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Resized bool

	// Capture metadata from EXIF, when present.
	Latitude  *float64
	Longitude *float64
	TakenAt   *time.Time
}

// Extension returns the file extension to store the image under. The
// uploaded name's extension is kept when it matches the content.
func (r *Result) Extension(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	for _, e := range extensions[r.MIME] {
		if e == ext {
			return ext
		}
	}
	return extensions[r.MIME][0]
}

// Processor turns uploads into stored images.
type Processor struct {
	MaxDimension int
}

// New returns a Processor. A non-positive maxDimension means
// DefaultMaxDimension.
func New(maxDimension int) *Processor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Processor{MaxDimension: maxDimension}
}

// Process reads image data and sniffs its format from the bytes, not from
// client headers. JPEG and PNG images larger than MaxDimension are downscaled
// and re-encoded in the same format; smaller ones and all WebP images are
// kept byte for byte.
func (p *Processor) Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	res := &Result{MIME: http.DetectContentType(data)}
	if _, ok := extensions[res.MIME]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, res.MIME)
	}

	readEXIF(data, res)

	if res.MIME == MIMEWebP {
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding webp: %w", err)
		}
		res.Data, res.Width, res.Height = data, cfg.Width, cfg.Height
		return res, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	bounds := img.Bounds()
	res.Width, res.Height = bounds.Dx(), bounds.Dy()

	scaled := downscale(img, p.MaxDimension)
	if scaled == img {
		res.Data = data
		return res, nil
	}

	var buf bytes.Buffer
	switch res.MIME {
	case MIMEJPEG:
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: JPEGQuality})
	case MIMEPNG:
		err = png.Encode(&buf, scaled)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", res.MIME, err)
	}

	b := scaled.Bounds()
	res.Data, res.Width, res.Height, res.Resized = buf.Bytes(), b.Dx(), b.Dy(), true
	return res, nil
}

// readEXIF fills capture metadata. Images without EXIF are common and not an
// error.
func readEXIF(data []byte, res *Result) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	if lat, lng, err := x.LatLong(); err == nil {
		res.Latitude, res.Longitude = &lat, &lng
	}
	if t, err := x.DateTime(); err == nil {
		res.TakenAt = &t
	}
}

// downscale resizes the image so neither dimension exceeds maxDim, using
// Catmull-Rom interpolation. Returns img itself if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW, newH = max(newW, 1), max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
