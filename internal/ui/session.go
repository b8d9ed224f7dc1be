package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/me/drill/internal/practice"
	"github.com/me/drill/pkg/model"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "drill_session"

// SessionManager maps browser cookies to learner sessions.
type SessionManager struct {
	practice *practice.Service
}

// NewSessionManager creates a new session manager.
func NewSessionManager(svc *practice.Service) *SessionManager {
	return &SessionManager{practice: svc}
}

// CreateSession starts a learner session.
func (sm *SessionManager) CreateSession(ctx context.Context, learner, category string) (*model.LearnerSession, error) {
	sess, err := sm.practice.StartSession(ctx, learner, category)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a live session by ID.
// Returns nil if the session doesn't exist or has expired.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) (*model.LearnerSession, error) {
	sess, err := sm.practice.Session(ctx, sessionID)
	if errors.Is(err, practice.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// DeleteSession ends a session.
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	return sm.practice.EndSession(ctx, sessionID)
}

// GetSessionFromRequest extracts the session from the request cookie.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*model.LearnerSession, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil // No cookie, no session
	}
	return sm.GetSession(r.Context(), cookie.Value)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, sess *model.LearnerSession, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
