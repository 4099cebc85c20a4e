package captcha

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"

	goVerify "github.com/MrEthical07/goVerify"
	dcaptcha "github.com/dchest/captcha"
	"github.com/google/uuid"
)

const (
	DefaultWidth   = 240
	DefaultHeight  = 80
	DefaultQuality = 85

	maxTextLength = 16
)

// ErrUnsupportedText is returned for text containing anything but ASCII
// digits.
var ErrUnsupportedText = errors.New("captcha: text must be ascii digits")

// DigitRenderer renders digit captchas as JPEG.
type DigitRenderer struct {
	Width   int
	Height  int
	Quality int

	// seed returns the per-image noise seed. Tests only.
	seed func() string
}

var _ goVerify.CaptchaImageRenderer = (*DigitRenderer)(nil)

// NewDigitRenderer returns a renderer using the default size and quality.
func NewDigitRenderer() *DigitRenderer {
	return &DigitRenderer{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Quality: DefaultQuality,
	}
}

func (r *DigitRenderer) ContentType() string { return "image/jpeg" }

func (r *DigitRenderer) Render(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" || len(text) > maxTextLength {
		return nil, ErrUnsupportedText
	}

	digits := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < '0' || c > '9' {
			return nil, ErrUnsupportedText
		}
		digits[i] = c - '0'
	}

	width, height, quality := r.Width, r.Height, r.Quality
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	seed := uuid.NewString
	if r.seed != nil {
		seed = r.seed
	}

	img := dcaptcha.NewImage(seed(), digits, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.Paletted, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("captcha: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
