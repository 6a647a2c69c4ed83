// Package api provides the HTTP handlers of the consultation service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/ashureev/campaign-consult/internal/errors"
)

// maxBodyBytes bounds request bodies; answers are limited far below this.
const maxBodyBytes = 64 << 10

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Fail writes err as {"error", "code"} with the status its code maps to.
func Fail(w http.ResponseWriter, err error) {
	cErr := apperrors.As(err)
	if cErr == nil {
		cErr = apperrors.NewInternal(err)
	}
	status := apperrors.StatusOf(cErr)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", cErr.Code, "error", err)
	}
	JSON(w, status, map[string]string{"error": cErr.Message, "code": string(cErr.Code)})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewInvalidRequest("request body is too large")
		}
		return apperrors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
