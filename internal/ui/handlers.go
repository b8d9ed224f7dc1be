package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/ratelimit"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// maxImportSize bounds uploaded progress snapshots.
const maxImportSize = 4 << 20

// UI handles the web user interface.
type UI struct {
	practice  *practice.Service
	sessions  *SessionManager
	logger    *slog.Logger
	limiter   *ratelimit.Limiter
	markdown  goldmark.Markdown
	startTime time.Time
	secure    bool // Use secure cookies (HTTPS)
}

// Config holds UI configuration.
type Config struct {
	Secure  bool               // Use secure cookies for HTTPS
	Limiter *ratelimit.Limiter // Throttles code checks; nil disables
}

// New creates a new UI handler.
func New(svc *practice.Service, logger *slog.Logger, cfg Config) *UI {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(0, 0)
	}
	return &UI{
		practice:  svc,
		sessions:  NewSessionManager(svc),
		logger:    logger.With("component", "ui"),
		limiter:   limiter,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		startTime: time.Now(),
		secure:    cfg.Secure,
	}
}

// HandleLogin renders the login page.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard.
	if sess, _ := ui.sessions.GetSessionFromRequest(r); sess != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := map[string]any{
		"Title": "Login - drill",
		"Error": r.URL.Query().Get("error"),
	}
	ui.render(w, "login", data)
}

// HandleLoginPost starts a session for the learner named in the form.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+request", http.StatusSeeOther)
		return
	}

	learner := strings.TrimSpace(r.FormValue("learner"))
	if err := model.ValidateLearner(learner); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Invalid learner name"), http.StatusSeeOther)
		return
	}

	sess, err := ui.sessions.CreateSession(r.Context(), learner, "")
	if err != nil {
		ui.logger.Error("create session failed", "error", err)
		http.Redirect(w, r, "/login?error=Session+creation+failed", http.StatusSeeOther)
		return
	}

	SetSessionCookie(w, sess, ui.secure)

	ui.logger.Info("learner logged in", "learner", learner, "session", sess.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session and redirects to login.
func (ui *UI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := SessionFromContext(r.Context()); sess != nil {
		_ = ui.sessions.DeleteSession(r.Context(), sess.ID)
		ui.logger.Info("learner logged out", "learner", sess.Learner, "session", sess.ID)
	}
	ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleDashboard renders statistics and the category filter.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	stats, err := ui.practice.Stats(r.Context(), sess.Learner)
	if err != nil {
		ui.renderError(w, "Failed to load statistics", err)
		return
	}

	data := map[string]any{
		"Title":      "Dashboard - drill",
		"Session":    sess,
		"Stats":      stats,
		"Outcomes":   srs.Outcomes,
		"Categories": ui.practice.Records().Categories(),
		"Message":    r.URL.Query().Get("msg"),
		"Error":      r.URL.Query().Get("error"),
		"Uptime":     time.Since(ui.startTime).Round(time.Second).String(),
	}
	ui.render(w, "dashboard", data)
}

// HandleCategory changes the session's category filter.
func (ui *UI) HandleCategory(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/?error=Invalid+request", http.StatusSeeOther)
		return
	}
	category := r.FormValue("category")

	// Drawing from the new category both validates it and stores it.
	sess.Category = category
	rec, err := ui.practice.Next(r.Context(), sess, records.Filter{})
	if err != nil {
		if errors.Is(err, srs.ErrEmptyCandidateSet) {
			http.Redirect(w, r, "/?error="+url.QueryEscape("No records in category "+category), http.StatusSeeOther)
			return
		}
		ui.renderError(w, "Failed to change category", err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/practice/%d", rec.ID), http.StatusSeeOther)
}

// HandlePracticeNext draws the next record and redirects to it.
func (ui *UI) HandlePracticeNext(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	rec, err := ui.practice.Next(r.Context(), sess, records.Filter{})
	if err != nil {
		if errors.Is(err, srs.ErrEmptyCandidateSet) {
			http.Redirect(w, r, "/?error="+url.QueryEscape("No records to practise"), http.StatusSeeOther)
			return
		}
		ui.renderError(w, "Failed to select a record", err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/practice/%d", rec.ID), http.StatusSeeOther)
}

// HandlePractice renders a record. ?answer=1 reveals the solution.
func (ui *UI) HandlePractice(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	rec, ok := ui.focus(w, r)
	if !ok {
		return
	}
	data := ui.practiceData(sess, rec)
	data["ShowAnswer"] = r.URL.Query().Get("answer") == "1"
	ui.render(w, "practice", data)
}

// HandleCheck runs the submitted code and renders the verdict.
func (ui *UI) HandleCheck(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	rec, ok := ui.focus(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		ui.renderError(w, "Invalid request", err)
		return
	}
	code := r.FormValue("code")
	data := ui.practiceData(sess, rec)
	data["Code"] = code

	if !ui.limiter.Allow(sess.Learner) {
		data["Error"] = "Too many checks, wait a moment and try again."
		ui.renderStatus(w, http.StatusTooManyRequests, "practice", data)
		return
	}

	report, err := ui.practice.Check(r.Context(), sess, rec.ID, code)
	if err != nil {
		ui.logger.Warn("check failed", "learner", sess.Learner, "record_id", rec.ID, "error", err)
		data["Error"] = err.Error()
		ui.render(w, "practice", data)
		return
	}
	data["Report"] = report
	ui.render(w, "practice", data)
}

// HandleRate records the learner's outcome and moves on.
func (ui *UI) HandleRate(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	rec, ok := ui.focus(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		ui.renderError(w, "Invalid request", err)
		return
	}
	outcome, err := srs.ParseOutcome(r.FormValue("outcome"))
	if err != nil {
		data := ui.practiceData(sess, rec)
		data["Error"] = err.Error()
		ui.renderStatus(w, http.StatusBadRequest, "practice", data)
		return
	}

	if _, err := ui.practice.Rate(r.Context(), sess, rec.ID, outcome); err != nil {
		ui.renderError(w, "Failed to save rating", err)
		return
	}
	http.Redirect(w, r, "/practice", http.StatusSeeOther)
}

// HandleExport downloads the learner's progress snapshot.
func (ui *UI) HandleExport(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	snap, err := ui.practice.Export(r.Context(), sess.Learner)
	if err != nil {
		ui.renderError(w, "Failed to export progress", err)
		return
	}

	filename := fmt.Sprintf("%s_progress_%s.json", sess.Learner, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		ui.logger.Error("export encode failed", "error", err)
	}
}

// HandleImport merges an uploaded progress snapshot.
func (ui *UI) HandleImport(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		http.Redirect(w, r, "/?error=Invalid+upload", http.StatusSeeOther)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Redirect(w, r, "/?error=No+file+selected", http.StatusSeeOther)
		return
	}
	defer file.Close()

	var snap model.Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape("Not a progress file: "+err.Error()), http.StatusSeeOther)
		return
	}
	p, err := ui.practice.Import(r.Context(), sess.Learner, &snap)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			http.Redirect(w, r, "/?error="+url.QueryEscape(apiErr.Message), http.StatusSeeOther)
			return
		}
		ui.renderError(w, "Failed to import progress", err)
		return
	}

	msg := fmt.Sprintf("Imported %d ratings and %d review states", len(p.Ratings), len(p.Reviews))
	http.Redirect(w, r, "/?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

// --- helpers ---

// focus loads the record named by {id}.
func (ui *UI) focus(w http.ResponseWriter, r *http.Request) (model.Record, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		ui.renderNotFound(w, "Invalid record id")
		return model.Record{}, false
	}
	rec, err := ui.practice.Records().Get(id)
	if err != nil {
		ui.renderNotFound(w, fmt.Sprintf("Record %d not found", id))
		return model.Record{}, false
	}
	return rec, true
}

func (ui *UI) practiceData(sess *model.LearnerSession, rec model.Record) map[string]any {
	return map[string]any{
		"Title":       fmt.Sprintf("Question %d - drill", rec.ID),
		"Session":     sess,
		"Record":      rec,
		"Prompt":      ui.renderMarkdown(rec.Prompt),
		"Explanation": ui.renderMarkdown(rec.Explanation),
		"Outcomes":    srs.Outcomes,
		"Total":       ui.practice.Records().Len(),
		"Code":        "",
	}
}

// renderMarkdown converts markdown to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func (ui *UI) renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := ui.markdown.Convert([]byte(src), &buf); err != nil {
		ui.logger.Warn("markdown render failed", "error", err)
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

func (ui *UI) render(w http.ResponseWriter, template string, data map[string]any) {
	ui.renderStatus(w, http.StatusOK, template, data)
}

// renderStatus renders template into a buffer and only then writes the
// headers, so a template failure can still answer 500.
func (ui *UI) renderStatus(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - drill",
		"Message": message,
	}
	ui.renderStatus(w, http.StatusInternalServerError, "error", data)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	data := map[string]any{
		"Title":   "Not Found - drill",
		"Message": message,
	}
	ui.renderStatus(w, http.StatusNotFound, "error", data)
}
