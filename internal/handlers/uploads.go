package handlers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/logging"
)

const maxUploadSize = 25 << 20

// UploadConfig controls where media uploads land and how their URLs are built.
type UploadConfig struct {
	Dir     string
	BaseURL string
}

// BuildUploadURL returns an absolute URL for an uploaded file. BaseURL wins
// over the request host when set.
func BuildUploadURL(c *fiber.Ctx, baseURL, filename string) string {
	if filename == "" {
		return ""
	}
	if baseURL != "" {
		return fmt.Sprintf("%s/uploads/%s", strings.TrimRight(baseURL, "/"), filename)
	}
	protocol := "http"
	if c.Protocol() == "https" || c.Get("X-Forwarded-Proto") == "https" {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/uploads/%s", protocol, c.Hostname(), filename)
}

// mediaKind maps a detected MIME type onto the media types messages and
// room comments accept. Empty means the upload is rejected.
func mediaKind(m *mimetype.MIME) string {
	for ; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return "image"
		case strings.HasPrefix(m.String(), "audio/"):
			return "audio"
		case strings.HasPrefix(m.String(), "video/"):
			return "video"
		}
	}
	return ""
}

// UploadHandler stores a multipart "file" and returns its public URL. The
// content type is sniffed from the bytes, not trusted from the client.
func UploadHandler(cfg UploadConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}
		if fileHeader.Size > maxUploadSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
		}

		src, err := fileHeader.Open()
		if err != nil {
			return httpError(c, fmt.Errorf("open upload: %w", err))
		}
		defer src.Close()

		mime, err := mimetype.DetectReader(src)
		if err != nil {
			return httpError(c, fmt.Errorf("detect upload type: %w", err))
		}
		kind := mediaKind(mime)
		if kind == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":        "unsupported media type",
				"content_type": mime.String(),
				"allowed":      "image/*, audio/*, video/*",
			})
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return httpError(c, fmt.Errorf("rewind upload: %w", err))
		}

		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return httpError(c, fmt.Errorf("create upload dir: %w", err))
		}
		ext := filepath.Ext(fileHeader.Filename)
		if ext == "" {
			ext = mime.Extension()
		}
		filename := fmt.Sprintf("%s_%d%s", currentUser(c), time.Now().UnixNano(), ext)
		destPath := filepath.Join(cfg.Dir, filename)

		dst, err := os.Create(destPath)
		if err != nil {
			return httpError(c, fmt.Errorf("create upload file: %w", err))
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			_ = os.Remove(destPath)
			return httpError(c, fmt.Errorf("save upload: %w", err))
		}

		logging.Info().
			Str("user_id", currentUser(c)).
			Str("username", currentUsername(c)).
			Str("file", filename).
			Str("mime", mime.String()).
			Msg("media uploaded")

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"url":       BuildUploadURL(c, cfg.BaseURL, filename),
			"mediaType": kind,
		})
	}
}
