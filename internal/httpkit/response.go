package httpkit

import (
	"encoding/json"
	"net/http"

	"promoreel/internal/pkg/errors"
)

type ErrorEnvelope struct {
	OK    bool `json:"ok"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var env ErrorEnvelope
	env.OK = false
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	_ = json.NewEncoder(w).Encode(env)
}

// WriteCodedErr maps a coded error onto the HTTP error envelope. Errors
// without a code are reported as internal without leaking their message.
func WriteCodedErr(w http.ResponseWriter, err error) {
	var coded *errors.Error
	if errors.As(err, &coded) {
		WriteErr(w, coded.HTTPStatus(), string(coded.Code), coded.Message, coded.Fields)
		return
	}
	WriteErr(w, 500, string(errors.CodeInternal), "internal server error", nil)
}
