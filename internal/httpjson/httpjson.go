// Package httpjson carries the JSON request/response helpers shared by the
// REST handlers and the tool dispatcher.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrEmptyBody reports a missing or empty request body. Handlers that treat
// an empty body as "no fields" check for it with errors.Is.
var ErrEmptyBody = errors.New("empty body")

func Decode(r *http.Request, out any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return ErrEmptyBody
		}
		return err
	}
	return nil
}

func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, errorResponse{Error: message, Code: code})
}
