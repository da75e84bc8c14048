package twelvelabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embedServer(t *testing.T, dims int, wantText string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.3/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key-123" {
			t.Error("missing api key header")
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if wantText != "" && req.Text != wantText {
			t.Errorf("expected text %q, got %q", wantText, req.Text)
		}
		if wantText == "" && req.ImageBase64 == "" {
			t.Error("expected image payload")
		}

		if status != 200 {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: make([]float32, dims)})
	}))
}

func TestEmbedText(t *testing.T) {
	srv := embedServer(t, Dims, "red summer dress", 200)
	defer srv.Close()

	c := New(srv.URL, "key-123")
	vec, err := c.EmbedText(context.Background(), "red summer dress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != Dims {
		t.Errorf("expected %d dims, got %d", Dims, len(vec))
	}
}

func TestEmbedImage(t *testing.T) {
	srv := embedServer(t, Dims, "", 200)
	defer srv.Close()

	c := New(srv.URL, "key-123")
	vec, err := c.EmbedImage(context.Background(), []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != Dims {
		t.Errorf("expected %d dims, got %d", Dims, len(vec))
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := embedServer(t, 64, "q", 200)
	defer srv.Close()

	c := New(srv.URL, "key-123")
	if _, err := c.EmbedText(context.Background(), "q"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedUpstreamError(t *testing.T) {
	srv := embedServer(t, 0, "q", 503)
	defer srv.Close()

	c := New(srv.URL, "key-123")
	if _, err := c.EmbedText(context.Background(), "q"); err == nil {
		t.Fatal("expected error for upstream 503")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := New("http://unused", "key-123")
	if _, err := c.EmbedText(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := c.EmbedImage(context.Background(), nil); err == nil {
		t.Error("expected error for empty image")
	}
}
