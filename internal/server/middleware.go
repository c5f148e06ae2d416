package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orbe/internal"
	"orbe/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

// Context key types to avoid collisions
type contextKey string

const (
	contextKeyPrincipal contextKey = "principal"
)

// groupsClaim is where Cognito lists the user's groups.
const groupsClaim = "cognito:groups"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// accessToken reads the bearer token, falling back to the encrypted session cookie.
func (s *Service) accessToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", errors.New("malformed authorization header")
		}
		return strings.TrimSpace(token), nil
	}

	cookie, err := r.Cookie(internal.COOKIE_ACCESS_TOKEN_NAME)
	if err != nil {
		return "", errors.New("no access token")
	}

	var token string
	if err := s.cookie.Decode(internal.COOKIE_ACCESS_TOKEN_NAME, cookie.Value, &token); err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return token, nil
}

func principalFromToken(token jwt.Token) (*types.Principal, error) {
	// Use Subject() for the standard "sub" claim
	userID, ok := token.Subject()
	if !ok || userID == "" {
		return nil, errors.New("no user ID in JWT subject claim")
	}

	principal := &types.Principal{UserID: userID}

	// email and groups are optional
	_ = token.Get("email", &principal.Email)

	var groups []any
	if err := token.Get(groupsClaim, &groups); err == nil {
		for _, g := range groups {
			if name, ok := g.(string); ok {
				principal.Groups = append(principal.Groups, name)
			}
		}
	}

	return principal, nil
}

// RequireAuth verifies the access token and adds the caller to the context
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := s.accessToken(r)
		if err != nil {
			s.logger.WithError(err).Debug("unauthenticated request")
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		set, err := s.jwksCache.Lookup(r.Context(), s.jwksURL)
		if err != nil {
			s.logger.WithError(err).Error("failed to fetch JWKS")
			s.writeError(w, http.StatusServiceUnavailable, "unable to verify credentials")
			return
		}

		token, err := jwt.Parse(
			[]byte(raw),
			jwt.WithKeySet(set),
			jwt.WithValidate(true),
		)
		if err != nil {
			s.logger.WithError(err).Info("failed to parse JWT")
			s.writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		principal, err := principalFromToken(token)
		if err != nil {
			s.logger.WithError(err).Info("rejecting token")
			s.writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		s.logger.WithFields(logrus.Fields{
			"user_id": principal.UserID,
			"groups":  principal.Groups,
		}).Debug("authenticated user")

		ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireReviewer must run after RequireAuth.
func (s *Service) RequireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFromContext(r.Context())
		if !ok || !s.isReviewer(principal) {
			s.writeError(w, http.StatusForbidden, "reviewer access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit throttles mutating requests per caller.
func (s *Service) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := s.limiter.GetIPKey(r)
		if principal, ok := principalFromContext(r.Context()); ok {
			key = principal.UserID
		}

		limit, err := s.limiter.Get(r.Context(), key)
		if err != nil {
			s.logger.WithError(err).Error("rate limiter failed")
			s.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limit.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", limit.Reset))

		if limit.Reached {
			s.writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Only strip if path is not root and has trailing slash
		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			// 308 keeps the method and body of writes.
			code := http.StatusPermanentRedirect
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				code = http.StatusMovedPermanently
			}

			http.Redirect(w, r, newURL.String(), code)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func principalFromContext(ctx context.Context) (*types.Principal, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(*types.Principal)
	return principal, ok && principal != nil
}

func (s *Service) isReviewer(p *types.Principal) bool {
	return p.InAnyGroup(s.config.ReviewerGroups)
}
