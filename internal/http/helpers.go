package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeInternal)
		writeErrorMessage(w, status, "internal server error")
		return
	}

	logger.DebugContext(r.Context(), "Request rejected",
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, status,
		log.FieldError, err.Error())
	writeErrorMessage(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthenticated),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDateOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrInvalidArgument)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", core.ErrInvalidArgument)
		case errors.Is(err, core.ErrInvalidAmount):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON body", core.ErrInvalidArgument)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidArgument)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid transaction id %q", core.ErrInvalidArgument, raw)
	}
	return id, nil
}

// parsePeriodQuery reads startDate and endDate. ok is false when neither is
// present; supplying only one is an error.
func parsePeriodQuery(r *http.Request) (start, end time.Time, ok bool, err error) {
	q := r.URL.Query()
	rawStart := strings.TrimSpace(q.Get("startDate"))
	rawEnd := strings.TrimSpace(q.Get("endDate"))
	if rawStart == "" && rawEnd == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, false,
			fmt.Errorf("%w: startDate and endDate must be given together", core.ErrInvalidArgument)
	}
	if start, err = core.ParseDate(rawStart); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if end, err = core.ParseDate(rawEnd); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return start, end, true, nil
}

// parseTimestamp accepts RFC 3339 timestamps or bare YYYY-MM-DD dates.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return core.ParseDate(s)
}
