package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/labstack/echo/v4"
)

// imageField is the multipart field carrying uploads.
const imageField = "image"

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type base64Req struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "message": "imgkeeper is running"})
}

func (s *Server) register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	user, err := s.service.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": user.ID, "username": user.UserName})
}

func (s *Server) login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	token, err := s.service.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// readImage returns the multipart "image" file and its client filename.
func readImage(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, err
		}
		return "", nil, common.Wrap(common.ErrorValidation, errors.New("no image file provided"))
	}
	if fh.Filename == "" {
		return "", nil, common.Wrap(common.ErrorValidation, errors.New("no file selected"))
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (s *Server) uploadImage(c echo.Context) error {
	filename, data, err := readImage(c)
	if err != nil {
		return s.fail(c, err)
	}

	storedPath, err := s.service.UploadImage(c.Request().Context(), bearerToken(c), filename, data)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"stored_path": storedPath})
}

func (s *Server) listImages(c echo.Context) error {
	items, err := s.service.ListImages(c.Request().Context(), bearerToken(c))
	if err != nil {
		return s.fail(c, err)
	}
	if items == nil {
		items = []*models.Image{}
	}
	return c.JSON(http.StatusOK, echo.Map{"images": items})
}

func (s *Server) getImage(c echo.Context) error {
	storedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil || storedPath == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid image path"})
	}

	data, err := s.service.OpenImage(c.Request().Context(), bearerToken(c), storedPath)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

func (s *Server) removeBackground(c echo.Context) error {
	filename, data, err := readImage(c)
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.service.RemoveBackground(c.Request().Context(), bearerToken(c), filename, data)
	if err != nil {
		return s.fail(c, err)
	}

	h := c.Response().Header()
	h.Set(common.StoredPathHeaderName, res.StoredPath)
	h.Set(echo.HeaderContentDisposition, `attachment; filename="processed_image.png"`)
	return c.Blob(http.StatusOK, "image/png", res.Data)
}

func (s *Server) removeBackgroundBase64(c echo.Context) error {
	var req base64Req
	if err := c.Bind(&req); err != nil || req.Image == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "no image data provided"})
	}

	data, err := decodeDataURL(req.Image)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	}

	filename := req.Filename
	if filename == "" {
		filename = "image.png"
	}

	res, err := s.service.RemoveBackground(c.Request().Context(), bearerToken(c), filename, data)
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error(c.Request().Context(), "request failed", "request_id", requestID(c), "error", err)
		}
		return c.JSON(code, echo.Map{"success": false, "error": msg})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"image":       "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.Data),
		"stored_path": res.StoredPath,
	})
}

// decodeDataURL accepts "data:image/...;base64,<payload>" or a bare payload.
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("no image data provided")
	}
	return data, nil
}
