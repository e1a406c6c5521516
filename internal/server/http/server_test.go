package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/cryptox"
	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/dmitrijs2005/imgkeeper/internal/server/blob"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imgkeeper/internal/server/services"
	"github.com/dmitrijs2005/imgkeeper/internal/server/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	ctx := context.Background()

	db, rm, err := repomanager.Open(ctx, repomanager.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := blob.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	hasher, err := cryptox.NewPasswordHasher(cryptox.SchemeBcrypt, cryptox.Argon2Params{}, bcrypt.MinCost)
	require.NoError(t, err)

	if opts.MaxUploadBytes == 0 {
		opts.MaxUploadBytes = 1 << 20
	}
	svc := services.NewService(db, rm, hasher, blobs, transform.NewPassthroughRemover(), opts.MaxUploadBytes, logging.Discard())
	return NewServer("127.0.0.1:0", logging.Discard(), svc, opts)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, h http.Handler, path, token, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/register", "", credentialsReq{Username: username, Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, h, http.MethodPost, "/api/login", "", credentialsReq{Username: username, Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.NRGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(common.RequestIDHeaderName))
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(common.RequestIDHeaderName, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(common.RequestIDHeaderName))
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/register", "", credentialsReq{Username: "Demo", Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "demo", decode(t, rec)["username"])

	rec = doJSON(t, h, http.MethodPost, "/api/register", "", credentialsReq{Username: "demo", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/register", "", credentialsReq{Username: "", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username is required", decode(t, rec)["error"])

	rec = doJSON(t, h, http.MethodPost, "/api/login", "", credentialsReq{Username: "demo", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/login", "", credentialsReq{Username: "DEMO", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["token"], 64)
}

func TestInvalidBody(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadListAndFetch(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()
	token := registerAndLogin(t, h, "alice")

	var paths []string
	for _, name := range []string{"one.png", "two.png"} {
		rec := doUpload(t, h, "/api/images", token, imageField, name, pngBytes(t))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		paths = append(paths, decode(t, rec)["stored_path"].(string))
	}
	assert.True(t, strings.HasPrefix(paths[0], "alice/"))

	rec := doJSON(t, h, http.MethodGet, "/api/images", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Images []struct {
			OriginalFilename string    `json:"original_filename"`
			StoredPath       string    `json:"stored_path"`
			UploadedAt       time.Time `json:"uploaded_at"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Images, 2)
	assert.Equal(t, "two.png", list.Images[0].OriginalFilename)
	assert.Equal(t, paths[1], list.Images[0].StoredPath)
	assert.NotContains(t, rec.Body.String(), "user_id")

	rec = doJSON(t, h, http.MethodGet, "/api/images/"+paths[0], token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(t), rec.Body.Bytes())

	other := registerAndLogin(t, h, "bob")
	rec = doJSON(t, h, http.MethodGet, "/api/images/"+paths[0], other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListImages_EmptyIsArray(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()
	token := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodGet, "/api/images", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"images":[]}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/images", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/images", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doUpload(t, h, "/api/images", "not-a-token", imageField, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set(common.AuthorizationHeaderName, "Basic abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpload_Validation(t *testing.T) {
	h := newTestServer(t, Options{MaxUploadBytes: 1024}).Handler()
	token := registerAndLogin(t, h, "alice")

	rec := doUpload(t, h, "/api/images", token, "file", "a.png", pngBytes(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no image file provided", decode(t, rec)["error"])

	rec = doUpload(t, h, "/api/images", token, imageField, "a.png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doUpload(t, h, "/api/images", token, imageField, "a.png", make([]byte, 2048))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doUpload(t, h, "/api/images", token, imageField, "a.png", make([]byte, 4<<20))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestRemoveBackground(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()
	token := registerAndLogin(t, h, "alice")

	rec := doUpload(t, h, "/remove-background", token, imageField, "photo.jpg", pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasSuffix(rec.Header().Get(common.StoredPathHeaderName), "_photo_no_bg.png"))

	_, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	rec = doUpload(t, h, "/remove-background", token, imageField, "x.png", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveBackgroundBase64(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()
	token := registerAndLogin(t, h, "alice")

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	rec := doJSON(t, h, http.MethodPost, "/remove-background-base64", token, base64Req{Image: payload})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	img := out["image"].(string)
	require.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img, "data:image/png;base64,"))
	require.NoError(t, err)
	_, _, err = image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out["stored_path"].(string), "_image_no_bg.png"))

	rec = doJSON(t, h, http.MethodPost, "/remove-background-base64", token, base64Req{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = doJSON(t, h, http.MethodPost, "/remove-background-base64", token, base64Req{Image: "%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/remove-background-base64", "bogus", base64Req{Image: payload})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec), "error")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBusyAddress(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := newTestServer(t, Options{})
	srv.address = l.Addr().String()

	err = srv.Run(context.Background())
	require.Error(t, err)
}
