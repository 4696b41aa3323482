package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/store"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks client input errors raised by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps an error to its HTTP status. Anything not recognized as a
// client or concurrency error is treated as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStaleRefresh):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// readBody returns the request body, or nil when it is empty.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	if len(data) > maxBodyBytes {
		return nil, badRequest("body exceeds %d bytes", maxBodyBytes)
	}
	return data, nil
}

func decodeJSON(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return badRequest("empty body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}
