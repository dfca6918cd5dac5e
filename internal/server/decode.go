package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

// requestError is a body problem that maps straight to an HTTP status.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, disallowUnknown bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if disallowUnknown {
		decoder.DisallowUnknownFields()
	}

	if err := decoder.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &requestError{status: http.StatusBadRequest, message: msg}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &requestError{status: http.StatusBadRequest, message: "Request body contains badly-formed JSON"}
		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &requestError{status: http.StatusBadRequest, message: msg}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &requestError{status: http.StatusBadRequest, message: msg}
		case errors.Is(err, io.EOF):
			return &requestError{status: http.StatusBadRequest, message: "Request body must not be empty"}
		case errors.As(err, &maxBytesError):
			msg := fmt.Sprintf("Request body must not be larger than %d bytes", maxBytesError.Limit)
			return &requestError{status: http.StatusRequestEntityTooLarge, message: msg}
		default:
			return err
		}
	}

	if decoder.More() {
		return &requestError{status: http.StatusBadRequest, message: "Request body must only contain a single JSON object"}
	}
	return nil
}

// decodeOrRespond decodes the body and writes the error response itself. It reports whether to continue.
func (s *Server) decodeOrRespond(w http.ResponseWriter, r *http.Request, dst any, disallowUnknown bool) bool {
	err := decodeJSON(w, r, dst, disallowUnknown)
	if err == nil {
		return true
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		respondWithError(w, reqErr.status, reqErr.message)
		return false
	}
	loggerFor(r).Error("decode request body", "error", err)
	respondWithError(w, http.StatusInternalServerError, msgServerError)
	return false
}
