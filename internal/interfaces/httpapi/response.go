package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/tbraddock/showcircuit/internal/usecase"
)

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
}

// pipelineErrorBody is the error shape for snapshot runs that die mid-way:
// the counters accumulated before the failure ride along with the message.
type pipelineErrorBody struct {
	Error   string   `json:"error"`
	RunID   string   `json:"runId,omitempty"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, dataEnvelope{Data: data})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	writeJSON(ctx, w, errorStatus(err), errorBody{Error: err.Error()})
}

func writePipelineError(ctx context.Context, w http.ResponseWriter, err error, summary usecase.RunSummary) {
	ctx, span := startSpan(ctx, "httpapi.writePipelineError")
	defer span.End()

	writeJSON(ctx, w, errorStatus(err), pipelineErrorBody{
		Error:   err.Error(),
		RunID:   summary.RunID,
		Updated: summary.Updated,
		Skipped: summary.Skipped,
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	writeJSON(ctx, w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
