package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
)

// recordView is a record as served to learners: the solution and the
// expected values stay on the server.
type recordView struct {
	ID          int    `json:"id"`
	OriginalID  int    `json:"qid_original,omitempty"`
	Category    string `json:"category,omitempty"`
	Prompt      string `json:"question"`
	Language    string `json:"language"`
	HasChecks   bool   `json:"has_checks"`
	Explanation string `json:"explanation,omitempty"`
}

func viewOf(rec model.Record) recordView {
	return recordView{
		ID:         rec.ID,
		OriginalID: rec.OriginalID,
		Category:   rec.Category,
		Prompt:     rec.Prompt,
		Language:   rec.Lang(),
		HasChecks:  !rec.Checks.Empty(),
	}
}

// answerView adds the solution, returned only when explicitly asked for.
type answerView struct {
	recordView
	Solution string `json:"solution_code,omitempty"`
}

func parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	opts.Category = q.Get("category")
	opts.Clamp()
	return opts
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := parseListOptions(r)

	recs := s.practice.Records().Filter(records.Filter{Category: opts.Category})
	start, end, pg := opts.Page(len(recs))

	views := make([]recordView, 0, end-start)
	for _, rec := range recs[start:end] {
		views = append(views, viewOf(rec))
	}
	respondList(w, reqID, views, pg)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	idParam := chi.URLParam(r, "id")

	id, err := strconv.Atoi(idParam)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid record id",
			model.FieldError{Field: "id", Message: "must be an integer"}))
		return
	}
	rec, err := s.practice.Records().Get(id)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("Record", idParam))
		return
	}

	if r.URL.Query().Get("answer") == "true" {
		v := answerView{recordView: viewOf(rec), Solution: rec.Solution}
		v.Explanation = rec.Explanation
		respondOK(w, reqID, v)
		return
	}
	respondOK(w, reqID, viewOf(rec))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.practice.Records().Categories())
}
