package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 10, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, sampleImage(), nil))
	return buf.Bytes()
}

func encodePNGBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, sampleImage()))
	return buf.Bytes()
}

func TestPassthroughRemover_JPEGToPNG(t *testing.T) {
	out, err := NewPassthroughRemover().Remove(context.Background(), encodeJPEG(t))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestPassthroughRemover_NotAnImage(t *testing.T) {
	_, err := NewPassthroughRemover().Remove(context.Background(), []byte("plain text"))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestHTTPRemover_Success(t *testing.T) {
	processed := encodePNGBytes(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(processed)
	}))
	defer ts.Close()

	out, err := NewHTTPRemover(ts.URL, time.Second).Remove(context.Background(), encodeJPEG(t))
	require.NoError(t, err)

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestHTTPRemover_RemoteFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewHTTPRemover(ts.URL, time.Second).Remove(context.Background(), encodeJPEG(t))
	assert.ErrorIs(t, err, common.ErrorTransformFailed)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestHTTPRemover_NonPNGResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not png"))
	}))
	defer ts.Close()

	_, err := NewHTTPRemover(ts.URL, time.Second).Remove(context.Background(), encodeJPEG(t))
	assert.ErrorIs(t, err, common.ErrorTransformFailed)
}

func TestHTTPRemover_RejectsGarbageBeforeCalling(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	_, err := NewHTTPRemover(ts.URL, time.Second).Remove(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.False(t, called)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &PassthroughRemover{}, New("", time.Second))
	assert.IsType(t, &HTTPRemover{}, New("http://rembg:7000/api/remove", time.Second))
}
