// Package chi exposes the REST surface: query, index triggers, task
// polling, document lookup and administrative reset.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
	"github.com/circulab/pubrag/internal/tasks"
	healthuc "github.com/circulab/pubrag/internal/usecase/health"
	raguc "github.com/circulab/pubrag/internal/usecase/rag"
)

const defaultAPIFetchLimit = 100

// ragService is the orchestrator contract consumed by the transport.
type ragService interface {
	Query(ctx context.Context, text string, limit int) (raguc.QueryOutput, error)
	IndexFromFile(ctx context.Context, path string) (int, error)
	IndexFromAPI(ctx context.Context, limit int) (int, error)
	GetDocument(ctx context.Context, id string) (*domain.QueryResult, error)
	DeleteDocument(ctx context.Context, id string) bool
	Reset(ctx context.Context) bool
}

// healthService aggregates component health.
type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

// taskManager runs and tracks background index jobs.
type taskManager interface {
	Submit(ctx context.Context, name string, fn tasks.Fn) tasks.Task
	Get(id string) (tasks.Task, bool)
	List() []tasks.Task
}

// Server holds the HTTP handlers.
type Server struct {
	rag    ragService
	health healthService
	tasks  taskManager
	// bgCtx outlives individual requests; background index jobs run on it
	// so they survive the triggering request and stop on shutdown.
	bgCtx  context.Context
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	rag ragService,
	health healthService,
	tasks taskManager,
	bgCtx context.Context,
	logger *zap.Logger,
) *Server {
	return &Server{
		rag:    rag,
		health: health,
		tasks:  tasks,
		bgCtx:  bgCtx,
		logger: logger,
	}
}

// Routes registers all handlers on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.handleQuery)
	r.Post("/index/file", s.handleIndexFile)
	r.Post("/index/api", s.handleIndexAPI)
	r.Get("/tasks", s.handleListTasks)
	r.Get("/tasks/{id}", s.handleGetTask)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Delete("/documents/{id}", s.handleDeleteDocument)
	r.Post("/reset", s.handleReset)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
}

// --- query ---

type queryRequest struct {
	Query            string `json:"query"`
	Limit            int    `json:"limit"`
	IncludeDocuments *bool  `json:"include_documents"`
}

type queryResponse struct {
	Query     string         `json:"query"`
	Answer    string         `json:"answer"`
	Documents []documentBody `json:"documents"`
}

type documentBody struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score,omitempty"`
	Title    string         `json:"title"`
	Summary  string         `json:"summary,omitempty"`
	Body     string         `json:"body,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	out, err := s.rag.Query(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := queryResponse{
		Query:     out.Query,
		Answer:    out.Answer,
		Documents: []documentBody{},
	}
	if req.IncludeDocuments == nil || *req.IncludeDocuments {
		for _, doc := range out.Documents {
			resp.Documents = append(resp.Documents, documentToBody(doc))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- index triggers ---

type indexFileRequest struct {
	FilePath string `json:"file_path"`
}

type indexAPIRequest struct {
	Limit int `json:"limit"`
}

type acceptedResponse struct {
	Status  string `json:"status"`
	TaskID  string `json:"task_id"`
	Details string `json:"details"`
}

func (s *Server) handleIndexFile(w http.ResponseWriter, r *http.Request) {
	var req indexFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "file_path is required")
		return
	}

	task := s.tasks.Submit(s.bgCtx, "index-file", func(ctx context.Context) (int, error) {
		return s.rag.IndexFromFile(ctx, req.FilePath)
	})

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status:  "accepted",
		TaskID:  task.ID,
		Details: "indexing from file started, poll /tasks/" + task.ID,
	})
}

func (s *Server) handleIndexAPI(w http.ResponseWriter, r *http.Request) {
	var req indexAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultAPIFetchLimit
	}

	task := s.tasks.Submit(s.bgCtx, "index-api", func(ctx context.Context) (int, error) {
		return s.rag.IndexFromAPI(ctx, req.Limit)
	})

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status:  "accepted",
		TaskID:  task.ID,
		Details: "indexing from api started, poll /tasks/" + task.ID,
	})
}

// --- tasks ---

type taskBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	Count       int    `json:"count"`
	Error       string `json:"error,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := s.tasks.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, taskToBody(task))
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	list := s.tasks.List()
	out := make([]taskBody, 0, len(list))
	for _, t := range list {
		out = append(out, taskToBody(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

// --- documents ---

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.rag.GetDocument(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, documentToBody(*doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.rag.DeleteDocument(r.Context(), id) {
		writeError(w, http.StatusNotFound, codeNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// --- reset ---

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.rag.Reset(r.Context()) {
		writeError(w, http.StatusInternalServerError, codeInternalError, "failed to reset the collection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"details": "collection reset",
	})
}

// --- health & metrics ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- helpers ---

type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeNotFound         errorCode = "not_found"
	codeEmbeddingError   errorCode = "embedding_provider_error"
	codeSourceError      errorCode = "source_unavailable"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrBatchMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationProviderError,
		domain.ErrSourceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrBatchMismatch):
		writeError(w, http.StatusBadRequest, codeValidationFailed, msg)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, msg)
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, codeEmbeddingError, msg)
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, codeSourceError, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func documentToBody(doc domain.QueryResult) documentBody {
	return documentBody{
		ID:       doc.ID,
		Score:    doc.Score,
		Title:    doc.Title,
		Summary:  doc.Summary,
		Body:     doc.Body,
		Metadata: doc.Metadata,
	}
}

func taskToBody(t tasks.Task) taskBody {
	body := taskBody{
		ID:          t.ID,
		Name:        t.Name,
		State:       string(t.State),
		Count:       t.Count,
		Error:       t.Error,
		SubmittedAt: t.SubmittedAt.Format(time.RFC3339),
	}
	if !t.FinishedAt.IsZero() {
		body.FinishedAt = t.FinishedAt.Format(time.RFC3339)
	}
	return body
}
