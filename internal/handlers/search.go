package handlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/altlab/recval/internal/store"
)

// MaxRecordingQueryTerms caps how many comma-separated wordforms one
// search may carry.
const MaxRecordingQueryTerms = 3

const searchResultLimit = 100

// SearchHandler serves recording searches over stored phrases.
type SearchHandler struct {
	store *store.Store
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(st *store.Store) *SearchHandler {
	return &SearchHandler{store: st}
}

// Handle answers GET /recording/_search/:query, where query is one or
// more comma-separated wordforms.
func (h *SearchHandler) Handle(c *fiber.Ctx) error {
	raw, err := url.QueryUnescape(c.Params("query"))
	if err != nil || strings.TrimSpace(raw) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "query is required",
			"code":  "ERR_NO_QUERY",
		})
	}

	terms := strings.Split(raw, ",")
	if len(terms) > MaxRecordingQueryTerms {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("too many query terms (max %d)", MaxRecordingQueryTerms),
			"code":  "ERR_TOO_MANY_TERMS",
		})
	}

	results, err := h.store.SearchRecordings(terms, searchResultLimit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	response := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		response = append(response, fiber.Map{
			"wordform":      r.Wordform,
			"translation":   r.Translation,
			"type":          r.Type,
			"speaker":       r.Speaker,
			"session":       r.Session,
			"recording_url": fmt.Sprintf("%s://%s/audio/%s.m4a", c.Protocol(), c.Hostname(), r.Fingerprint),
		})
	}
	return c.JSON(response)
}
