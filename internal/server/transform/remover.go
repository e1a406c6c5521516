// Package transform removes image backgrounds. Output is always PNG.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/netx"
)

type Remover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
}

// PassthroughRemover only normalizes the input to PNG. It is used when no
// background removal endpoint is configured.
type PassthroughRemover struct{}

func NewPassthroughRemover() *PassthroughRemover {
	return &PassthroughRemover{}
}

func (r *PassthroughRemover) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(common.ErrorTransformFailed, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.Wrap(common.ErrorValidation, fmt.Errorf("decode image: %w", err))
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, common.Wrap(common.ErrorTransformFailed, err)
	}
	return buf.Bytes(), nil
}

// HTTPRemover posts the image to a rembg compatible endpoint
// (`rembg s` serves one at /api/remove).
type HTTPRemover struct {
	endpoint string
	field    string
	client   *http.Client
}

func NewHTTPRemover(endpoint string, timeout time.Duration) *HTTPRemover {
	return &HTTPRemover{
		endpoint: endpoint,
		field:    "file",
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRemover) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, common.Wrap(common.ErrorValidation, fmt.Errorf("decode image: %w", err))
	}

	out, err := netx.PostMultipartFile(ctx, r.client, r.endpoint, r.field, "image", data)
	if err != nil {
		return nil, common.Wrap(common.ErrorTransformFailed, err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, common.Wrap(common.ErrorTransformFailed, fmt.Errorf("remote returned non-png: %w", err))
	}
	return encodePNG(img)
}

// New picks HTTPRemover when endpoint is set.
func New(endpoint string, timeout time.Duration) Remover {
	if endpoint == "" {
		return NewPassthroughRemover()
	}
	return NewHTTPRemover(endpoint, timeout)
}
