package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is the API server version reported by /health.
const Version = "0.1.0"

type healthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	GoVersion string   `json:"go_version"`
	Uptime    string   `json:"uptime"`
	Store     string   `json:"store"`
	Sessions  bool     `json:"sessions"`
	Records   int      `json:"records"`
	Languages []string `json:"languages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     s.config.Store.Backend,
		Sessions:  s.practice.SessionsEnabled(),
		Records:   s.practice.Records().Len(),
		Languages: s.practice.Languages(),
	})
}
