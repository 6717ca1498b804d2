package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusCode maps an Engine error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrResetSessionAbsent),
		errors.Is(err, authcore.ErrCodeInvalid),
		errors.Is(err, authcore.ErrCodeExpired):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrInvalidInput), errors.Is(err, authcore.ErrExpired):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, authcore.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authcore.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON body with its public message.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusCode(err), ErrorBody{Error: authcore.PublicMessage(err)})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
