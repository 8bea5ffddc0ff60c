package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
)

// ProblemDetail is an RFC7807 error body.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{Title: title, Status: status, Detail: detail})
}

// respondError maps domain errors to problem responses. Anything unknown is
// a 500 without detail.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stock.ErrNotFound):
		problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, stock.ErrValidation):
		problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, redisx.ErrDuplicateRequest):
		problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
