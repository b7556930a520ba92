package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/chat"
	"github.com/smartstudy-abroad/smartstudy/internal/fallback"
	"github.com/smartstudy-abroad/smartstudy/internal/matching"
	"github.com/smartstudy-abroad/smartstudy/internal/search"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
)

// SourceError is the source of every error response body.
const SourceError = "error"

// errBadRequest marks a malformed request body.
var errBadRequest = errors.New("malformed request")

type errorResponse struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, search.ErrInvalidRequest),
		errors.Is(err, matching.ErrInvalidProfile),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, fallback.ErrGenerationFailed),
		errors.Is(err, chat.ErrReplyFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := s.logger.With(zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}

	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "storage unavailable, please retry"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Source: SourceError, Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequest
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
