package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "drill API",
		Version:     "v1",
		Description: "Spaced-repetition practice for coding exercises",
		Endpoints: []endpointInfo{
			{"/api/v1/records", []string{"GET"}, "List records. Supports ?category, ?limit and ?offset"},
			{"/api/v1/records/{id}", []string{"GET"}, "Single record. ?answer=true includes the solution"},
			{"/api/v1/categories", []string{"GET"}, "Distinct record categories"},
			{"/api/v1/sessions", []string{"POST"}, "Start a learner session"},
			{"/api/v1/sessions/{sid}", []string{"GET", "DELETE"}, "Get or end a session"},
			{"/api/v1/sessions/{sid}/next", []string{"POST"}, "Draw the next record (optional category or id)"},
			{"/api/v1/sessions/{sid}/rate", []string{"POST"}, "Rate a record hard, medium or easy"},
			{"/api/v1/sessions/{sid}/check", []string{"POST"}, "Run code against a record's checks (rate limited)"},
			{"/api/v1/learners/{learner}/stats", []string{"GET"}, "Learner statistics"},
			{"/api/v1/learners/{learner}/due", []string{"GET"}, "Records currently due for a learner"},
			{"/api/v1/learners/{learner}/progress", []string{"GET", "POST"}, "Export or import a progress snapshot"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
