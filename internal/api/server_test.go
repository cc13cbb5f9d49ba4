package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/model"
)

func newMultipartRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req
}

func TestDocumentFromForm(t *testing.T) {
	s := &Server{}

	req := newMultipartRequest(t, map[string]string{
		"merchantName":   "Acme Payments",
		"merchantId":     "ACME-1",
		"documentType":   "AOC",
		"pciVersion":     "4.0",
		"issueDate":      "2024-01-15",
		"expirationDate": "2025-01-15",
		"assignedTo":     "user-1",
	})
	doc, err := s.documentFromForm(req)
	require.NoError(t, err)
	assert.Equal(t, "Acme Payments", doc.MerchantName)
	assert.Equal(t, model.TypeAOC, doc.DocumentType)
	assert.Equal(t, model.StatusPendingReview, doc.Status)
	require.NotNil(t, doc.AssignedTo)
	assert.Equal(t, "user-1", *doc.AssignedTo)
	assert.NotEmpty(t, doc.ID)
}

func TestDocumentFromFormRejectsBadInput(t *testing.T) {
	s := &Server{}

	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"missing merchant", map[string]string{
			"issueDate":      "2024-01-15",
			"expirationDate": "2025-01-15",
		}},
		{"bad date format", map[string]string{
			"merchantName":   "Acme",
			"issueDate":      "15/01/2024",
			"expirationDate": "2025-01-15",
		}},
		{"expiration before issue", map[string]string{
			"merchantName":   "Acme",
			"issueDate":      "2025-01-15",
			"expirationDate": "2024-01-15",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := newMultipartRequest(t, tc.fields)
			_, err := s.documentFromForm(req)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestJobTrigger(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.Register("expiration-scan", func(ctx context.Context) (any, error) {
		return map[string]int{"total": 3, "notified": 2}, nil
	})
	s := &Server{registry: registry}

	w := httptest.NewRecorder()
	s.handleJobRoute(w, httptest.NewRequest(http.MethodPost, "/jobs/expiration-scan", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Job     string         `json:"job"`
		Summary map[string]int `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "expiration-scan", resp.Job)
	assert.Equal(t, 2, resp.Summary["notified"])
}

func TestJobTriggerUnknownJob(t *testing.T) {
	s := &Server{registry: jobs.NewRegistry()}

	w := httptest.NewRecorder()
	s.handleJobRoute(w, httptest.NewRequest(http.MethodPost, "/jobs/no-such-job", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobTriggerRequiresPost(t *testing.T) {
	s := &Server{registry: jobs.NewRegistry()}

	w := httptest.NewRecorder()
	s.handleJobRoute(w, httptest.NewRequest(http.MethodGet, "/jobs/expiration-scan", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListJobs(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.Register("b-job", func(ctx context.Context) (any, error) { return nil, nil })
	registry.Register("a-job", func(ctx context.Context) (any, error) { return nil, nil })
	s := &Server{registry: registry}

	w := httptest.NewRecorder()
	s.handleJobs(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a-job", "b-job"}, resp["jobs"])
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&model.ValidationError{Field: "expirationDate", Reason: "bad"}, http.StatusBadRequest},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		writeError(w, tc.err)
		assert.Equal(t, tc.code, w.Code)
	}
}
