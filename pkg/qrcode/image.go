package qrcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

// ImageOptions controls raster output.
type ImageOptions struct {
	Width      int
	Margin     int // quiet zone, in modules
	DarkColor  string
	LightColor string
}

// DefaultImageOptions mirrors the label printer defaults.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{Width: 300, Margin: 2, DarkColor: "#000000", LightColor: "#FFFFFF"}
}

// ImageRenderer encodes payloads into PNG files.
type ImageRenderer struct {
	level goqrcode.RecoveryLevel
}

// NewImageRenderer uses medium error correction, enough for printed cartons.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{level: goqrcode.Medium}
}

// RenderToFile writes a PNG for payload at destPath.
func (r *ImageRenderer) RenderToFile(ctx context.Context, payload, destPath string, opts ImageOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := r.RenderPNG(payload, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("prepare image directory: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	return nil
}

// RenderPNG encodes payload and returns the PNG bytes.
func (r *ImageRenderer) RenderPNG(payload string, opts ImageOptions) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty qr payload")
	}
	defaults := DefaultImageOptions()
	if opts.Width <= 0 {
		opts.Width = defaults.Width
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	dark, err := parseHexColor(opts.DarkColor, color.Black)
	if err != nil {
		return nil, err
	}
	light, err := parseHexColor(opts.LightColor, color.White)
	if err != nil {
		return nil, err
	}

	q, err := goqrcode.New(payload, r.level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.DisableBorder = true
	q.ForegroundColor = dark
	q.BackgroundColor = light

	modules := len(q.Bitmap())
	moduleSize := opts.Width / (modules + 2*opts.Margin)
	if moduleSize < 1 {
		moduleSize = 1
	}
	inner := moduleSize * modules
	width := opts.Width
	if width < inner+2*opts.Margin*moduleSize {
		width = inner + 2*opts.Margin*moduleSize
	}
	offset := (width - inner) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, width, width))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: light}, image.Point{}, draw.Src)
	code := q.Image(inner)
	draw.Draw(canvas, image.Rect(offset, offset, offset+inner, offset+inner), code, code.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHexColor(raw string, fallback color.Color) (color.Color, error) {
	if raw == "" {
		return fallback, nil
	}
	hex := strings.TrimPrefix(raw, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return nil, fmt.Errorf("invalid color %q", raw)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", raw)
	}
	if len(hex) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
