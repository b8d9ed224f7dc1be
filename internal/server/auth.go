package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"

	"github.com/me/drill/pkg/model"
)

const ctxKeyAPIAuth ctxKey = "api_auth"

// APIKeyEnv holds API keys as JSON: {"key1": ["ada"], "key2": []}.
const APIKeyEnv = "DRILL_API_KEYS"

// AuthContext holds the authenticated caller for a request.
type AuthContext struct {
	KeyID    string   // Hash of the key (for logging, not the raw key)
	Learners []string // Learners this key may act for; empty means all
}

// AuthFromContext extracts the AuthContext from request context.
func AuthFromContext(ctx context.Context) *AuthContext {
	if ac, ok := ctx.Value(ctxKeyAPIAuth).(*AuthContext); ok {
		return ac
	}
	return nil
}

// KeyConfig maps API keys to the learners they may act for.
type KeyConfig struct {
	Keys map[string]KeyEntry `json:"keys"`
}

// KeyEntry defines the learners and metadata for an API key.
type KeyEntry struct {
	Learners    []string `json:"learners"`
	Description string   `json:"description,omitempty"`
}

// LoadKeyConfig loads API keys from a JSON file and the DRILL_API_KEYS
// environment variable. Environment entries win.
func LoadKeyConfig(configFile string) (*KeyConfig, error) {
	cfg := &KeyConfig{Keys: make(map[string]KeyEntry)}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read api keys: %w", err)
		}
		var fileCfg KeyConfig
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse api keys: %w", err)
		}
		for k, v := range fileCfg.Keys {
			cfg.Keys[k] = v
		}
	}

	if envVal := os.Getenv(APIKeyEnv); envVal != "" {
		var envKeys map[string][]string
		if err := json.Unmarshal([]byte(envVal), &envKeys); err != nil {
			return nil, fmt.Errorf("parse %s: %w", APIKeyEnv, err)
		}
		for key, learners := range envKeys {
			cfg.Keys[key] = KeyEntry{Learners: learners}
		}
	}

	return cfg, nil
}

// Validate returns the entry for key, or nil if the key is unknown.
func (c *KeyConfig) Validate(key string) *KeyEntry {
	if entry, ok := c.Keys[key]; ok {
		return &entry
	}
	return nil
}

// IsEnabled returns true if any API keys are configured.
func (c *KeyConfig) IsEnabled() bool {
	return c != nil && len(c.Keys) > 0
}

// hashKey creates a short hash of the key for logging purposes.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}

// apiAuthMiddleware validates the X-API-Key header. If no keys are
// configured, authentication is disabled (open access).
func apiAuthMiddleware(keys *KeyConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			if !keys.IsEnabled() {
				ctx := context.WithValue(r.Context(), ctxKeyAPIAuth, &AuthContext{KeyID: "none"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				respondError(w, reqID, http.StatusUnauthorized, &model.APIError{
					Code:    model.ErrUnauthorized,
					Message: "authentication required (X-API-Key header missing)",
				})
				return
			}

			entry := keys.Validate(key)
			if entry == nil {
				logger.Warn("invalid api key", "key_hash", hashKey(key))
				respondError(w, reqID, http.StatusUnauthorized, &model.APIError{
					Code:    model.ErrUnauthorized,
					Message: "invalid api key",
				})
				return
			}

			ac := &AuthContext{KeyID: hashKey(key), Learners: entry.Learners}
			ctx := context.WithValue(r.Context(), ctxKeyAPIAuth, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CanActFor checks if the caller may read or write learner's progress.
func (c *AuthContext) CanActFor(learner string) bool {
	if c == nil {
		return false
	}
	if len(c.Learners) == 0 {
		return true
	}
	return slices.Contains(c.Learners, learner)
}

// authorize writes a 403 and returns false when the caller may not act for learner.
func authorize(w http.ResponseWriter, r *http.Request, learner string) bool {
	if AuthFromContext(r.Context()).CanActFor(learner) {
		return true
	}
	respondError(w, RequestIDFromContext(r.Context()), http.StatusForbidden, &model.APIError{
		Code:    model.ErrForbidden,
		Message: fmt.Sprintf("api key may not act for learner '%s'", learner),
	})
	return false
}
