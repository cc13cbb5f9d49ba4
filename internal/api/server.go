// Package api exposes the HTTP surface: document upload and retrieval,
// manual review, and the operational job trigger.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/config"
	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/model"
	"github.com/dmarquez/pcitrack/internal/notify"
	"github.com/dmarquez/pcitrack/internal/queue"
	"github.com/dmarquez/pcitrack/internal/repository"
	"github.com/dmarquez/pcitrack/internal/s3storage"
	"github.com/dmarquez/pcitrack/internal/status"
)

const dateLayout = "2006-01-02"

// Server exposes HTTP endpoints for documents and jobs.
type Server struct {
	cfg        *config.Config
	repo       *repository.DocumentRepository
	store      *s3storage.Storage
	queue      *asynq.Client
	registry   *jobs.Registry
	dispatcher *notify.Dispatcher
	server     *http.Server
	once       sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, repo *repository.DocumentRepository, store *s3storage.Storage, queueClient *asynq.Client, registry *jobs.Registry, dispatcher *notify.Dispatcher) *Server {
	return &Server{
		cfg:        cfg,
		repo:       repo,
		store:      store,
		queue:      queueClient,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.handleHealth)
		mux.HandleFunc("/documents", s.handleDocuments)
		mux.HandleFunc("/documents/", s.handleDocumentRoute)
		mux.HandleFunc("/jobs", s.handleJobs)
		mux.HandleFunc("/jobs/", s.handleJobRoute)
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(mux)),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Info().Str("address", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDocumentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/documents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleDocument(w, r, id)
		return
	}
	switch parts[1] {
	case "review":
		s.handleReview(w, r, id)
	case "file-url":
		s.handleFileURL(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.repo.List(r.Context(), model.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	url, err := s.store.PresignURL(r.Context(), doc.ObjectKey, 5*time.Minute)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize); err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty file", http.StatusBadRequest)
		return
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	if http.DetectContentType(sniff) != "application/pdf" {
		http.Error(w, "only PDF files supported", http.StatusBadRequest)
		return
	}

	doc, err := s.documentFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc.FileName = filepath.Base(header.Filename)
	doc.ObjectKey = fmt.Sprintf("uploads/%s/%s", doc.ID, doc.FileName)
	status.Apply(doc, time.Now().UTC(), s.cfg.ThresholdDays)

	if err := s.store.Upload(ctx, doc.ObjectKey, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		log.Error().Err(err).Msg("upload to storage failed")
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		writeError(w, err)
		return
	}
	payload := queue.ExtractPayload{
		DocumentID: doc.ID,
		ObjectKey:  doc.ObjectKey,
		FileName:   doc.FileName,
	}
	if err := queue.EnqueueExtract(ctx, s.queue, payload); err != nil {
		http.Error(w, "failed to queue extraction", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, doc)
}

func (s *Server) documentFromForm(r *http.Request) (*model.Document, error) {
	issue, err := time.Parse(dateLayout, r.FormValue("issueDate"))
	if err != nil {
		return nil, &model.ValidationError{Field: "issueDate", Reason: "expected YYYY-MM-DD"}
	}
	expiration, err := time.Parse(dateLayout, r.FormValue("expirationDate"))
	if err != nil {
		return nil, &model.ValidationError{Field: "expirationDate", Reason: "expected YYYY-MM-DD"}
	}
	merchant := strings.TrimSpace(r.FormValue("merchantName"))
	if merchant == "" {
		return nil, &model.ValidationError{Field: "merchantName", Reason: "required"}
	}
	docType := model.DocumentType(r.FormValue("documentType"))
	if docType == "" {
		docType = model.TypeOther
	}
	doc := &model.Document{
		ID:             uuid.NewString(),
		MerchantName:   merchant,
		MerchantID:     strings.TrimSpace(r.FormValue("merchantId")),
		DocumentType:   docType,
		PCIVersion:     strings.TrimSpace(r.FormValue("pciVersion")),
		IssueDate:      issue,
		ExpirationDate: expiration,
		Status:         model.StatusPendingReview,
	}
	if assigned := strings.TrimSpace(r.FormValue("assignedTo")); assigned != "" {
		doc.AssignedTo = &assigned
	}
	if err := doc.CheckDates(); err != nil {
		return nil, err
	}
	return doc, nil
}

type reviewRequest struct {
	IsValid *bool  `json:"isValid"`
	Notes   string `json:"notes"`
}

// handleReview records a manual validation, re-derives the status, and sends
// an update notice to stakeholders.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.IsValid == nil {
		writeError(w, &model.ValidationError{Field: "isValid", Reason: "required"})
		return
	}
	ctx := r.Context()
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now().UTC()
	extracted := map[string]string(nil)
	if doc.Validation != nil {
		extracted = doc.Validation.ExtractedData
	}
	doc.Validation = &model.ValidationResult{
		IsValid:       req.IsValid,
		Method:        model.ValidationManual,
		Notes:         req.Notes,
		ValidatedAt:   now,
		ExtractedData: extracted,
	}
	status.Apply(doc, now, s.cfg.ThresholdDays)
	if err := s.repo.Save(ctx, doc); err != nil {
		writeError(w, err)
		return
	}
	if notify.ShouldNotify(doc.Notifications, model.KindUpdate, now, s.cfg.Cooldown) {
		records := s.dispatcher.DispatchDocument(ctx, doc, model.KindUpdate, 0)
		if err := s.repo.AppendNotifications(ctx, doc.ID, records); err != nil {
			log.Error().Err(err).Str("document", doc.ID).Msg("append notification history failed")
		}
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"jobs": s.registry.Names()})
}

// handleJobRoute runs a registered job on demand and returns its summary.
func (s *Server) handleJobRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	summary, err := s.registry.Run(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"job": name, "summary": summary})
}

func writeError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
