// Package identity gives every studio visitor an anonymous, cookie-backed
// user ID and scopes chat state to a browser tab through a session ID.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/store"
)

const (
	AnonCookieName        = "studio_anon_id"
	SessionHeaderName     = "X-Studio-Session-ID"
	DefaultSessionIDValue = "default"

	cookieLifetime = 30 * 24 * time.Hour
	userIDPrefix   = "anon_"

	// lastSeenResolution limits last_seen_at writes to one per user per window.
	lastSeenResolution = time.Minute
)

var (
	userIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Identity is who is calling and from which tab.
type Identity struct {
	UserID    string
	SessionID string
}

type ctxKey struct{}

// WithIdentity returns ctx carrying the given identity. An invalid session ID
// is replaced by DefaultSessionIDValue.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, SessionID: normalizeSession(sessionID)})
}

// FromContext returns the identity stored by WithIdentity or Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// UserIDFromContext returns the caller's user ID, or "" when anonymous
// identity was never established.
func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// SessionIDFromContext returns the caller's tab session ID.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.SessionID
	}
	return DefaultSessionIDValue
}

// Middleware reads or issues the visitor cookie, records the visitor in repo
// and stores the resulting Identity in the request context.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	v := visitors{repo: repo, secure: !isDev, now: time.Now}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := v.cookie(w, r)
			if err := v.touch(r.Context(), userID); err != nil {
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}

			sessionID := r.Header.Get(SessionHeaderName)
			if sessionID == "" {
				// Browsers cannot set headers on WebSocket upgrades.
				sessionID = r.URL.Query().Get("session_id")
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, sessionID)))
		})
	}
}

type visitors struct {
	repo   store.Repository
	secure bool
	now    func() time.Time
}

// cookie returns the visitor's user ID, minting one when the cookie is
// missing or forged, and refreshes the cookie's expiry.
func (v visitors) cookie(w http.ResponseWriter, r *http.Request) string {
	var userID string
	if c, err := r.Cookie(AnonCookieName); err == nil && userIDPattern.MatchString(c.Value) {
		userID = c.Value
	} else {
		userID = newUserID()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(cookieLifetime.Seconds()),
		Expires:  v.now().Add(cookieLifetime),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   v.secure,
	})
	return userID
}

// touch creates the user on first sight and otherwise bumps last_seen_at at
// most once per lastSeenResolution.
func (v visitors) touch(ctx context.Context, userID string) error {
	user, err := v.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := v.now()
	if user != nil {
		if user.IdleFor(now) < lastSeenResolution {
			return nil
		}
		return v.repo.UpdateLastSeen(ctx, userID, now)
	}

	return v.repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		Username:   displayName(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// displayName derives the display name shown for an anonymous user.
func displayName(userID string) string {
	if !strings.HasPrefix(userID, userIDPrefix) || len(userID) < len(userIDPrefix)+8 {
		return "anon-user"
	}
	return "anon-" + userID[len(userID)-8:]
}

func newUserID() string {
	return userIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeSession(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}
