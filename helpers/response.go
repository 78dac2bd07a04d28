// Package helpers holds the small pieces every HTTP handler shares: JSON
// responses, error rendering and caller identity.
package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"roomie_server/apperrors"
)

// UserIDHeader carries the authenticated caller. Authentication itself
// happens in front of this server.
const UserIDHeader = "X-User-Id"

// WriteJSONResponse writes data as a JSON body with the given status.
func WriteJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError renders err as {"code","message","details"}. Errors that are not
// AppErrors become a 500 without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSONResponse(w, status, appErr)
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is empty")
		}
		return apperrors.Validation("invalid request payload").WithDetails(err.Error())
	}
	return nil
}

// UserID returns the caller's id or ErrUnauthorized.
func UserID(r *http.Request) (string, error) {
	uid := r.Header.Get(UserIDHeader)
	if uid == "" {
		return "", apperrors.ErrUnauthorized
	}
	return uid, nil
}
