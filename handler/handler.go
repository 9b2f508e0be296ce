package handler

import (
	"encoding/json"
	"net/http"
)

type response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details []any  `json:"details,omitempty"`
}

func Message(w http.ResponseWriter, status int, message string, details ...any) {
	writeJSON(w, status, response{
		Message: message,
		Details: details,
	})
}

func Error(w http.ResponseWriter, status int, message string, err error, details ...any) {
	writeJSON(w, status, response{
		Message: message,
		Error:   err.Error(),
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"could not marshal response"}`))
		return
	}

	w.WriteHeader(status)
	w.Write(body)
}
