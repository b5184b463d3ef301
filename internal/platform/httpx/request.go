package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parkyard/parkyard/internal/shared"
)

// ErrBadRequest is returned for malformed payloads and path parameters.
var ErrBadRequest = shared.NewError(shared.KindValidation, "BAD_REQUEST", "malformed request")

// IDParam parses a positive integer chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadRequest.Wrapf("invalid %s %q", name, raw)
	}
	return id, nil
}

// BoolQuery reads a boolean query parameter, defaulting to false.
func BoolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// Bind decodes the JSON body into target and runs struct validation.
func Bind(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return ErrBadRequest.Wrapf("%v", err)
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(target); err != nil {
		return ErrBadRequest.Wrapf("%v", err)
	}
	return nil
}
