package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/altlab/recval/internal/store"
)

// PhraseHandler exposes a phrase's versioned-string history and edits.
type PhraseHandler struct {
	store *store.Store
}

// NewPhraseHandler creates a new phrase handler.
func NewPhraseHandler(st *store.Store) *PhraseHandler {
	return &PhraseHandler{store: st}
}

type versionJSON struct {
	ID           string `json:"id"`
	Value        string `json:"value"`
	Author       string `json:"author"`
	Timestamp    string `json:"timestamp"`
	ProvenanceID string `json:"provenance_id"`
	PreviousID   string `json:"previous_id,omitempty"`
}

// History answers GET /phrases/:id/history?field=transcription.
// Versions come back oldest first.
func (h *PhraseHandler) History(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad phrase id", "code": "ERR_BAD_ID"})
	}
	field := c.Query("field", "transcription")

	history, err := h.store.PhraseFieldHistory(id, field)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	response := make([]versionJSON, 0, len(history))
	for _, v := range history {
		response = append(response, versionJSON{
			ID:           v.ID,
			Value:        v.Value,
			Author:       v.AuthorName,
			Timestamp:    v.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			ProvenanceID: v.ProvenanceID,
			PreviousID:   v.PreviousID,
		})
	}
	return c.JSON(response)
}

// UpdateRequest is the body of a phrase edit.
type UpdateRequest struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Author string `json:"author"`
}

// Update answers PATCH /phrases/:id. The stored string is never
// mutated; a new version is derived and the phrase rebound to it.
func (h *PhraseHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad phrase id", "code": "ERR_BAD_ID"})
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body", "code": "ERR_INVALID_BODY"})
	}
	if req.Author == "" {
		req.Author = "<unknown author>"
	}

	node, err := h.store.UpdatePhrase(id, req.Field, req.Value, req.Author)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(versionJSON{
		ID:           node.ID,
		Value:        node.Value,
		Author:       node.AuthorName,
		Timestamp:    node.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		ProvenanceID: node.ProvenanceID,
		PreviousID:   node.PreviousID,
	})
}
