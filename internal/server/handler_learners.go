package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
)

type importResponse struct {
	Learner  string `json:"learner"`
	Ratings  int    `json:"ratings"`
	Attempts int    `json:"attempts"`
	Reviews  int    `json:"reviews"`
}

// learnerParam validates {learner} and checks the caller may act for it.
func learnerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	learner := chi.URLParam(r, "learner")
	if err := model.ValidateLearner(learner); err != nil {
		status, apiErr := classify(err)
		respondError(w, RequestIDFromContext(r.Context()), status, apiErr)
		return "", false
	}
	return learner, authorize(w, r, learner)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	learner, ok := learnerParam(w, r)
	if !ok {
		return
	}

	st, err := s.practice.Stats(r.Context(), learner)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, st)
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	learner, ok := learnerParam(w, r)
	if !ok {
		return
	}
	opts := parseListOptions(r)

	due, _, err := s.practice.Due(r.Context(), learner, records.Filter{Category: opts.Category})
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	start, end, pg := opts.Page(len(due))
	views := make([]recordView, 0, end-start)
	for _, rec := range due[start:end] {
		views = append(views, viewOf(rec))
	}
	respondList(w, reqID, views, pg)
}

func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	learner, ok := learnerParam(w, r)
	if !ok {
		return
	}

	snap, err := s.practice.Export(r.Context(), learner)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, snap)
}

func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	learner, ok := learnerParam(w, r)
	if !ok {
		return
	}

	var snap model.Snapshot
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		invalidBody(w, reqID, err)
		return
	}

	p, err := s.practice.Import(r.Context(), learner, &snap)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, importResponse{
		Learner:  learner,
		Ratings:  len(p.Ratings),
		Attempts: len(p.Attempts),
		Reviews:  len(p.Reviews),
	})
}
