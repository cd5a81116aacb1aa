package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/service"
)

const maxBodyBytes = 1 << 20

// envelope is the shape of every JSON response body.
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Errors     any                 `json:"errors,omitempty"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
}

func respondWithData(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, envelope{Success: true, Message: message, Data: data})
}

func respondWithPage(w http.ResponseWriter, data any, p service.Pagination) {
	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, envelope{Success: false, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithServiceError maps the domain error classes to status codes.
// Anything outside them is logged and hidden behind a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Message: "The given data was invalid",
			Errors:  verr.Fields,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, domain.Message(err))
	case errors.Is(err, domain.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, domain.Message(err))
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, domain.Message(err))
	case errors.Is(err, domain.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, domain.Message(err))
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, domain.Message(err))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads the request body into dst and writes the 4xx itself when
// it cannot. The caller returns when it reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	case errors.As(err, &maxBytesError):
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body must not be larger than %d bytes", maxBytesError.Limit))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to decode request body")
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid ID provided")
		return 0, false
	}
	return uint(id), true
}

// intQuery returns def for a missing parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Fields: map[string]string{
			name: fmt.Sprintf("the %s must be an integer", strings.ReplaceAll(name, "_", " ")),
		}}
	}
	return n, nil
}

func pageQuery(r *http.Request) (service.PageRequest, error) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		return service.PageRequest{}, err
	}
	perPage, err := intQuery(r, "per_page", service.DefaultPerPage)
	if err != nil {
		return service.PageRequest{}, err
	}
	return service.PageRequest{Page: page, PerPage: perPage}, nil
}
