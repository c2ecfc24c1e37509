package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fintrack/internal/log"
	"fintrack/internal/ports"
)

const bearerPrefix = "Bearer "

// Outcomes reported to the gate observer.
const (
	OutcomeBypassed      = "bypassed"
	OutcomeMissing       = "missing"
	OutcomeInvalid       = "invalid"
	OutcomeAuthenticated = "authenticated"
	OutcomeAborted       = "aborted"
)

// TokenValidator is the part of TokenService the gate relies on.
type TokenValidator interface {
	Validate(token string) bool
	ExtractUsername(token string) string
}

// Gate attaches an Identity to requests that carry a valid bearer token.
//
// It never rejects a request for lacking or presenting a bad token; that is
// left to a later authorization step. It only short-circuits with 401 when
// resolving the identity behind a valid token fails unexpectedly.
type Gate struct {
	tokens       TokenValidator
	users        ports.UserDirectory
	publicPrefix string
	logger       *log.Logger
	observe      func(outcome string)
}

type GateOption func(*Gate)

// WithObserver registers fn to be told the outcome of every request.
func WithObserver(fn func(outcome string)) GateOption {
	return func(g *Gate) { g.observe = fn }
}

func NewGate(tokens TokenValidator, users ports.UserDirectory, publicPrefix string, logger *log.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = log.Discard()
	}
	g := &Gate{
		tokens:       tokens,
		users:        users,
		publicPrefix: publicPrefix,
		logger:       logger.WithComponent(log.ComponentAuth),
		observe:      func(string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Intercept runs the gate for one request. It returns the request to forward
// and true to continue, or false after it has written the response itself.
func (g *Gate) Intercept(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	path := r.URL.Path
	if g.publicPrefix != "" && strings.HasPrefix(path, g.publicPrefix) {
		g.logger.DebugContext(r.Context(), "Skipping auth check for public path", log.FieldPath, path)
		g.observe(OutcomeBypassed)
		return r, true
	}

	ctx, outcome, err := g.authenticate(r)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "Authentication error",
			log.FieldPath, path,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeAuth)
		g.observe(OutcomeAborted)
		writeUnauthorized(w, "Error: Unauthorized - "+err.Error())
		return nil, false
	}

	g.observe(outcome)
	return r.WithContext(ctx), true
}

func (g *Gate) authenticate(r *http.Request) (ctx context.Context, outcome string, err error) {
	ctx = r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during authentication: %v", rec)
		}
	}()

	token, found := BearerToken(r)
	if !found {
		g.logger.WarnContext(ctx, "No JWT token found in request", log.FieldPath, r.URL.Path)
		return ctx, OutcomeMissing, nil
	}

	if !g.tokens.Validate(token) {
		g.logger.WarnContext(ctx, "JWT token validation failed", log.FieldPath, r.URL.Path)
		return ctx, OutcomeInvalid, nil
	}

	username := g.tokens.ExtractUsername(token)
	user, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		return ctx, OutcomeAborted, fmt.Errorf("load user %q: %w", username, err)
	}

	identity := Identity{UserID: user.ID, Username: user.Username, Roles: user.Roles}
	g.logger.DebugContext(ctx, "Successfully authenticated user", log.FieldUser, user.Username)
	return WithIdentity(ctx, identity), OutcomeAuthenticated, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
