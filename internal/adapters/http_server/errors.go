package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"roomledger/internal/domain"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	problemUnauthenticated = "/problems/unauthenticated"
	problemRateLimited     = "/problems/rate-limited"
)

func problemType(kind error) string {
	switch kind {
	case domain.ErrInvalidInput:
		return "/problems/invalid-input"
	case domain.ErrNotFound:
		return "/problems/not-found"
	case domain.ErrRoomUnavailable:
		return "/problems/room-unavailable"
	case domain.ErrAlreadyCancelled:
		return "/problems/already-cancelled"
	case domain.ErrUnauthorized:
		return "/problems/forbidden"
	case domain.ErrConflict:
		return "/problems/conflict"
	default:
		return "/problems/store-failure"
	}
}

func writeProblem(w http.ResponseWriter, status int, typ, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: typ, Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps an error kind to its HTTP status. Conflict and StoreFailure are retryable.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	var status int
	var title string
	detail := err.Error()
	switch kind {
	case domain.ErrInvalidInput:
		status, title = http.StatusBadRequest, "Invalid Input"
	case domain.ErrNotFound:
		status, title = http.StatusNotFound, "Not Found"
	case domain.ErrRoomUnavailable:
		status, title = http.StatusConflict, "Room Unavailable"
	case domain.ErrAlreadyCancelled:
		status, title = http.StatusGone, "Already Cancelled"
	case domain.ErrUnauthorized:
		status, title = http.StatusForbidden, "Forbidden"
	case domain.ErrConflict:
		status, title = http.StatusLocked, "Conflict"
		w.Header().Set("Retry-After", "1")
	default:
		status, title = http.StatusServiceUnavailable, "Store Failure"
		detail = "temporary storage failure, retry the request"
		w.Header().Set("Retry-After", "2")
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeProblem(w, status, problemType(kind), title, detail)
}
