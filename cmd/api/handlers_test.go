package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/ingest"
	"github.com/ModaAI/moda-mvp/engine/rag"
	"github.com/ModaAI/moda-mvp/engine/semantic"
	"github.com/ModaAI/moda-mvp/pkg/metrics"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, domain.EmbeddingDims), s.err
}

func (s *stubEmbedder) EmbedImage(_ context.Context, _ []byte) ([]float32, error) {
	return make([]float32, domain.EmbeddingDims), s.err
}

type stubSearcher struct {
	hits []semantic.RawHit
	err  error
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, _ int) ([]semantic.RawHit, error) {
	return s.hits, s.err
}

type stubInserter struct{}

func (stubInserter) Insert(_ context.Context, _ string, _ []float32, _ domain.ProductRecord) error {
	return nil
}

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return s.reply, s.err
}

func newTestAPI(searcher *stubSearcher, gen *stubGenerator, embedErr error) *apiHandler {
	embedder := &stubEmbedder{err: embedErr}
	ragSvc := rag.New(embedder, searcher, gen, rag.DefaultOptions(), slog.Default())
	ingestSvc := ingest.New(embedder, stubInserter{}, nil, slog.Default())
	return &apiHandler{
		rag:    ragSvc,
		ingest: ingestSvc,
		met:    metrics.New(),
		logger: slog.Default(),
	}
}

func productHits() []semantic.RawHit {
	return []semantic.RawHit{
		{Score: 0.8, Fields: map[string]any{"title": "Red Dress", "description": "cotton"}},
	}
}

func TestHandleChat(t *testing.T) {
	api := newTestAPI(&stubSearcher{hits: productHits()}, &stubGenerator{reply: "Try the red dress."}, nil)

	body, _ := json.Marshal(ChatRequest{Question: "red summer dress"})
	rec := httptest.NewRecorder()
	api.handleChat(rec, httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Try the red dress." || resp.TotalSources != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.History) != 2 {
		t.Errorf("expected updated history, got %d turns", len(resp.History))
	}
}

func TestHandleChatValidation(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)

	rec := httptest.NewRecorder()
	api.handleChat(rec, httptest.NewRequest("POST", "/api/chat", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}

	body, _ := json.Marshal(ChatRequest{})
	rec = httptest.NewRecorder()
	api.handleChat(rec, httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: expected 400, got %d", rec.Code)
	}
}

func TestHandleChatEmbedFailure(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, errors.New("down"))

	body, _ := json.Marshal(ChatRequest{Question: "q"})
	rec := httptest.NewRecorder()
	api.handleChat(rec, httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "down") {
		t.Error("raw upstream error must not leak to the client")
	}
}

func TestHandleChatDegraded(t *testing.T) {
	api := newTestAPI(&stubSearcher{hits: productHits()}, &stubGenerator{err: errors.New("llm down")}, nil)

	body, _ := json.Marshal(ChatRequest{Question: "q"})
	rec := httptest.NewRecorder()
	api.handleChat(rec, httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("degraded answers are still 200, got %d", rec.Code)
	}
	var resp ChatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Degraded || resp.TotalSources != 1 {
		t.Errorf("expected degraded response with sources: %+v", resp)
	}
}

func multipartImage(t *testing.T, topK string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "query.jpg")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte{0xff, 0xd8, 0xff})
	if topK != "" {
		mw.WriteField("top_k", topK)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHandleVisualSearch(t *testing.T) {
	hits := []semantic.RawHit{
		{Score: 0.9, Fields: map[string]any{
			"title": "Runway clip", "description": "red dress",
			"video_url": "https://cdn.example/v/9.mp4",
			"start_time": "12.5s", "end_time": "18.0s",
		}},
	}
	api := newTestAPI(&stubSearcher{hits: hits}, &stubGenerator{}, nil)

	buf, contentType := multipartImage(t, "3")
	req := httptest.NewRequest("POST", "/api/visual-search", buf)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	api.handleVisualSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp VisualSearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].StartTime != "12.5s" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestHandleVisualSearchTopKBounds(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)

	for _, bad := range []string{"0", "21", "abc"} {
		buf, contentType := multipartImage(t, bad)
		req := httptest.NewRequest("POST", "/api/visual-search", buf)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		api.handleVisualSearch(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("top_k=%s: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestHandleVisualSearchMissingImage(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("top_k", "2")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/visual-search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	api.handleVisualSearch(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleAddProduct(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)

	record := domain.ProductRecord{
		ProductID:   "prod-1",
		Title:       "Red Dress",
		Description: "cotton",
		Link:        "https://shop.example/p/1",
		VideoURL:    "https://cdn.example/v/1.mp4",
	}
	body, _ := json.Marshal(record)
	rec := httptest.NewRecorder()
	api.handleAddProduct(rec, httptest.NewRequest("POST", "/api/products", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAddProductInvalid(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)

	body, _ := json.Marshal(domain.ProductRecord{ProductID: "p"})
	rec := httptest.NewRecorder()
	api.handleAddProduct(rec, httptest.NewRequest("POST", "/api/products", bytes.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(&stubSearcher{}, &stubGenerator{}, nil)
	rec := httptest.NewRecorder()
	api.handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
