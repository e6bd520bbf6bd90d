// internal/api/respond.go
package api

import (
	"net/http"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/internal/errs"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status   string   `json:"status"`
	Kind     string   `json:"kind"`
	Reason   string   `json:"reason,omitempty"`
	Message  string   `json:"message"`
	Variants []string `json:"variants,omitempty"`
}

// MessageResponse acknowledges an operation with nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode response.", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"status":"error","kind":"internal","message":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("Failed to write response.", zap.Error(err))
	}
}

// respondError maps err onto its status and envelope. Internal causes are
// logged here and never reach the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	e := errs.From(err)
	if e == nil {
		e = errs.New(errs.Internal, errs.ReasonNone, "Internal server error", errs.WithCause(err))
	}
	status := e.HTTPStatus()
	message := e.Message
	if e.Kind == errs.Internal {
		logger.Error("Request failed.",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if message == "" {
			message = "Internal server error"
		}
	}
	respondJSON(w, logger, status, ErrorResponse{
		Status:   "error",
		Kind:     string(e.Kind),
		Reason:   string(e.Reason),
		Message:  message,
		Variants: e.Variants,
	})
}
