// Package httpjson provides the JSON request/response helpers shared by the
// HTTP handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
)

// maxBodyBytes caps request bodies; post content is text, not uploads.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope returned for every failure.
type ErrorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Write encodes payload as JSON with the given status.
func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// WriteError maps an error to its HTTP status and writes the error envelope.
// Non-domain errors are reported as unknown without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		log.Printf("internal error: %v", err)
		Write(w, http.StatusInternalServerError, ErrorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		})
		return
	}
	Write(w, domainErr.Code.HTTPStatus(), ErrorBody{
		Code:     string(domainErr.Code),
		Message:  domainErr.Message,
		Metadata: domainErr.Metadata,
	})
}

// Decode reads a JSON request body into target, rejecting unknown fields
// and oversized payloads.
func Decode(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeRequestInvalid, "request body is not valid JSON", err)
	}
	return nil
}
