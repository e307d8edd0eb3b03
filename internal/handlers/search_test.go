package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/altlab/recval/internal/store"
	"github.com/altlab/recval/internal/types"
)

func testApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	app := fiber.New()
	app.Use(cors.New(cors.Config{AllowOrigins: "*"}))
	app.Get("/recording/_search/:query", NewSearchHandler(st).Handle)
	phrases := NewPhraseHandler(st)
	app.Get("/phrases/:id/history", phrases.History)
	app.Patch("/phrases/:id", phrases.Update)
	return app, st
}

func seedRecording(t *testing.T, st *store.Store, transcription, translation string) int64 {
	t.Helper()
	id, err := st.GetOrCreatePhrase(types.KindWord, transcription, translation, "importer")
	if err != nil {
		t.Fatalf("seed phrase: %v", err)
	}
	fp, _, err := st.PutAudio([]byte("audio for " + transcription))
	if err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	if _, err := st.AddRecording(fp, id, "2015-05-05am", "LOU", "", 500); err != nil {
		t.Fatalf("seed recording: %v", err)
	}
	return id
}

func TestSearchFindsOnlyRelevantRecording(t *testing.T) {
	app, st := testApp(t)
	seedRecording(t, st, "ê-nipat", "he is sleeping")
	seedRecording(t, st, "atim", "dog")

	req := httptest.NewRequest(http.MethodGet, "/recording/_search/%C3%AA-nipat", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS header")
	}

	var hits []map[string]any
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &hits); err != nil {
		t.Fatalf("bad JSON %s: %v", body, err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	hit := hits[0]
	if hit["wordform"] != "ê-nipat" {
		t.Errorf("wordform = %v", hit["wordform"])
	}
	urlStr, _ := hit["recording_url"].(string)
	if !strings.HasPrefix(urlStr, "http") || !strings.HasSuffix(urlStr, ".m4a") {
		t.Errorf("recording_url = %q, want an absolute .m4a URL", urlStr)
	}
	if hit["speaker"] != "LOU" {
		t.Errorf("speaker = %v", hit["speaker"])
	}
}

func TestSearchMultipleTerms(t *testing.T) {
	app, st := testApp(t)
	seedRecording(t, st, "ê-nipat", "")
	seedRecording(t, st, "atim", "")
	seedRecording(t, st, "sîsîp", "")

	req := httptest.NewRequest(http.MethodGet, "/recording/_search/%C3%AA-nipat,atim", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var hits []map[string]any
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &hits); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestSearchTooManyTerms(t *testing.T) {
	app, _ := testApp(t)
	req := httptest.NewRequest(http.MethodGet, "/recording/_search/a,b,c,d", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400 for more than %d terms", resp.StatusCode, MaxRecordingQueryTerms)
	}
}

func TestPhraseHistoryAndUpdate(t *testing.T) {
	app, st := testApp(t)
	id := seedRecording(t, st, "enipat", "he sleeps")

	patch := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/phrases/%d", id),
		strings.NewReader(`{"field":"transcription","value":"ê-nipat","author":"alice"}`))
	patch.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(patch)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("patch status = %d: %s", resp.StatusCode, body)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/phrases/%d/history?field=transcription", id), nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var history []map[string]any
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("bad JSON %s: %v", body, err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0]["value"] != "enipat" || history[1]["value"] != "ê-nipat" {
		t.Errorf("history values = %v, %v", history[0]["value"], history[1]["value"])
	}
	if history[1]["previous_id"] != history[0]["id"] {
		t.Error("previous_id does not thread the chain")
	}
}
