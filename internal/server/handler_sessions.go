package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

type createSessionRequest struct {
	Learner  string `json:"learner"`
	Category string `json:"category"`
}

type nextRequest struct {
	Category string `json:"category"`
	ID       int    `json:"id"`
}

type nextResponse struct {
	SessionID string     `json:"session_id"`
	Record    recordView `json:"record"`
}

type rateRequest struct {
	ID      int    `json:"id"`
	Outcome string `json:"outcome"`
}

type rateResponse struct {
	RecordID   int         `json:"record_id"`
	Outcome    srs.Outcome `json:"outcome"`
	Interval   float64     `json:"interval"`
	LastReview time.Time   `json:"last_review"`
	NextReview time.Time   `json:"next_review"`
}

type checkRequest struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// Request body limits.
const (
	maxCodeBody   = 256 << 10
	maxImportBody = 4 << 20
)

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// loadSession resolves {sid} and checks the caller may act for its learner.
// It writes the error response itself and returns nil on failure.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *model.LearnerSession {
	reqID := RequestIDFromContext(r.Context())
	sess, err := s.practice.Session(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		s.respondErr(w, reqID, err)
		return nil
	}
	if !authorize(w, r, sess.Learner) {
		return nil
	}
	return sess
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBody(w, reqID, err)
		return
	}
	if !authorize(w, r, req.Learner) {
		return
	}

	sess, err := s.practice.StartSession(r.Context(), req.Learner, req.Category)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	respondOK(w, reqID, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	if err := s.practice.EndSession(r.Context(), sess.ID); err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": sess.ID, "status": "deleted"})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	var req nextRequest
	if err := decodeBody(r, &req); err != nil {
		invalidBody(w, reqID, err)
		return
	}

	rec, err := s.practice.Next(r.Context(), sess, records.Filter{Category: req.Category, ID: req.ID})
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, nextResponse{SessionID: sess.ID, Record: viewOf(rec)})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBody(w, reqID, err)
		return
	}
	outcome, err := srs.ParseOutcome(req.Outcome)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error(),
			model.FieldError{Field: "outcome", Message: "must be hard, medium or easy"}))
		return
	}

	id := req.ID
	if id == 0 {
		id = sess.CurrentID
	}
	st, err := s.practice.Rate(r.Context(), sess, req.ID, outcome)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, rateResponse{
		RecordID:   id,
		Outcome:    outcome,
		Interval:   st.Interval,
		LastReview: st.LastReview,
		NextReview: st.NextReview(),
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	if !s.limiter.Allow(sess.Learner) {
		w.Header().Set("Retry-After", "1")
		respondError(w, reqID, http.StatusTooManyRequests, &model.APIError{
			Code:    model.ErrRateLimited,
			Message: "too many code checks, slow down",
		})
		return
	}

	var req checkRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxCodeBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBody(w, reqID, err)
		return
	}

	report, err := s.practice.Check(r.Context(), sess, req.ID, req.Code)
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, report)
}
