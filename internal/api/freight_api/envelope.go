package freight_api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/BearBump/FreightBox/internal/services/actions"
)

// envelope is the body of every /api response.
type envelope struct {
	Code int `json:"code"`
	Data any `json:"data"`
}

// writeJSON encodes before writing the header, so an unencodable body becomes a 500.
func writeJSON(w http.ResponseWriter, code int, data any) {
	b, err := json.Marshal(envelope{Code: code, Data: data})
	if err != nil {
		slog.Error("encode response", "code", code, "error", err.Error())
		code = http.StatusInternalServerError
		b, _ = json.Marshal(envelope{Code: code, Data: map[string]any{"message": "Internal server error."}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(b, '\n')); err != nil {
		slog.Warn("write response", "error", err.Error())
	}
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"message": message})
}

func writeResult(w http.ResponseWriter, res actions.Result) {
	data := make(map[string]any, len(res.Extra)+1)
	for k, v := range res.Extra {
		data[k] = v
	}
	data["message"] = res.Message
	writeJSON(w, http.StatusOK, data)
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindMalformedInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeMessage(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	data := make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		data[k] = v
	}
	data["message"] = e.Message
	writeJSON(w, statusOf(e.Kind), data)
}
