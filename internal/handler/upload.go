package handler

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/apperr"
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadHandler stores post images on local disk under uuid names. The
// directory is served read-only at PublicPrefix by the router.
type UploadHandler struct {
	Clients      Clients
	Dir          string
	PublicPrefix string
	MaxBytes     int64
	Production   bool
}

func NewUploadHandler(clients Clients, dir, publicPrefix string, maxBytes int64, production bool) *UploadHandler {
	return &UploadHandler{Clients: clients, Dir: dir, PublicPrefix: publicPrefix, MaxBytes: maxBytes, Production: production}
}

// Upload: POST /api/upload, multipart field "file".
func (h *UploadHandler) Upload(c echo.Context) error {
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	if !client.Principal().Privileged() {
		return respond(c, apperr.Forbidden("admin role required to upload"), h.Production)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return respond(c, apperr.Validation("file is required"), h.Production)
	}
	if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
		return respond(c, apperr.Validation("file too large"), h.Production)
	}
	src, err := fh.Open()
	if err != nil {
		return respond(c, apperr.Wrapf(err, "open upload"), h.Production)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return respond(c, apperr.Wrapf(err, "read upload"), h.Production)
	}
	head = head[:n]
	ext, ok := imageExt[http.DetectContentType(head)]
	if !ok {
		return respond(c, apperr.Validation("only jpeg, png, gif and webp images are accepted"), h.Production)
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return respond(c, apperr.Wrapf(err, "create upload dir"), h.Production)
	}
	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(h.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return respond(c, apperr.Wrapf(err, "create upload file"), h.Production)
	}
	_, err = dst.Write(head)
	if err == nil {
		_, err = io.Copy(dst, src)
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(h.Dir, name))
		return respond(c, apperr.Wrapf(err, "write upload"), h.Production)
	}

	log.Ctx(c.Request().Context()).Info().Str("file", name).Int64("bytes", fh.Size).Msg("upload stored")
	return c.JSON(http.StatusCreated, echo.Map{"url": path.Join(h.PublicPrefix, name)})
}
