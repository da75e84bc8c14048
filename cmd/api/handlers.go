package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/ingest"
	"github.com/ModaAI/moda-mvp/engine/rag"
	"github.com/ModaAI/moda-mvp/pkg/events"
	"github.com/ModaAI/moda-mvp/pkg/metrics"
)

const (
	maxImageBytes = 10 << 20 // 10 MiB upload cap
	maxVisualTopK = 20
)

type apiHandler struct {
	rag    *rag.Service
	ingest *ingest.Service
	events *events.Publisher
	met    *metrics.Registry
	logger *slog.Logger
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question string              `json:"question"`
	History  domain.Conversation `json:"history,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer       string                    `json:"answer"`
	Sources      []domain.NormalizedRecord `json:"sources"`
	TotalSources int                       `json:"total_sources"`
	Degraded     bool                      `json:"degraded,omitempty"`
	History      domain.Conversation       `json:"history"`
}

// VisualSearchResponse is the JSON response for POST /api/visual-search.
type VisualSearchResponse struct {
	Results []domain.NormalizedRecord `json:"results"`
}

func (a *apiHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a.met.Counter("moda_chat_requests_total", "Chat requests").Inc()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, history, err := a.rag.Query(r.Context(), req.Question, req.History)
	if err != nil {
		a.writePipelineError(w, err)
		return
	}
	a.met.Histogram("moda_chat_duration_seconds", "Chat latency", nil).Since(start)
	if answer.Degraded {
		a.met.Counter("moda_chat_degraded_total", "Chat answers degraded by generation failure").Inc()
	}
	if a.events != nil {
		a.events.QueryCompleted(r.Context(), len(req.Question), answer.TotalSources, answer.Degraded)
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:       answer.Text,
		Sources:      answer.Sources,
		TotalSources: answer.TotalSources,
		Degraded:     answer.Degraded,
		History:      history,
	})
}

func (a *apiHandler) handleVisualSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a.met.Counter("moda_visual_requests_total", "Visual search requests").Inc()

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	topK := 2
	if v := r.FormValue("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxVisualTopK {
			writeError(w, http.StatusBadRequest, "top_k must be between 1 and 20")
			return
		}
		topK = n
	}

	results, err := a.rag.SearchSimilar(r.Context(), image, topK)
	if err != nil {
		a.writePipelineError(w, err)
		return
	}
	a.met.Histogram("moda_visual_duration_seconds", "Visual search latency", nil).Since(start)

	writeJSON(w, http.StatusOK, VisualSearchResponse{Results: results})
}

func (a *apiHandler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	a.met.Counter("moda_ingest_requests_total", "Product ingestion requests").Inc()

	var record domain.ProductRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.ingest.AddProduct(r.Context(), record); err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "product_id": record.ProductID})
}

// writePipelineError maps pipeline failures to status codes and stable
// user-visible messages; the raw error stays in the log.
func (a *apiHandler) writePipelineError(w http.ResponseWriter, err error) {
	a.logger.Error("pipeline failure", "err", err)

	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid query")
	case errors.Is(err, domain.ErrEmbedding):
		a.met.Counter(metrics.WithLabels("moda_errors_total", "stage", "embed"), "Pipeline errors by stage").Inc()
		writeError(w, http.StatusBadGateway, "embedding service unavailable")
	case errors.Is(err, domain.ErrRetrieval):
		a.met.Counter(metrics.WithLabels("moda_errors_total", "stage", "search"), "Pipeline errors by stage").Inc()
		writeError(w, http.StatusBadGateway, "search service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
