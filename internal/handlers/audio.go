package handlers

import (
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v2"
)

var audioFileRe = regexp.MustCompile(`^[0-9a-f]{64}\.m4a$`)

// AudioHandler serves transcoded recordings by fingerprint.
type AudioHandler struct {
	dir string
}

// NewAudioHandler serves files out of the transcoded-audio directory.
func NewAudioHandler(dir string) *AudioHandler {
	return &AudioHandler{dir: dir}
}

// Handle answers GET /audio/:file for files named <fingerprint>.m4a.
func (h *AudioHandler) Handle(c *fiber.Ctx) error {
	name := c.Params("file")
	if !audioFileRe.MatchString(name) {
		return c.Status(404).JSON(fiber.Map{
			"error": "no such recording",
			"code":  "ERR_BAD_FINGERPRINT",
		})
	}
	c.Set("Content-Type", "audio/mp4")
	return c.SendFile(filepath.Join(h.dir, name))
}
