package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"eexcot/internal/dataprocessing"
	"eexcot/internal/history"
	"eexcot/internal/infrastructure"
	"eexcot/pkg/contracts/domain"
)

// Problem types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Snapshot and history problem types
const (
	TypeSnapshotLayout     = "/errors/snapshot/layout"
	TypeUnknownLabel       = "/errors/snapshot/unknown-label"
	TypeReconciliation     = "/errors/snapshot/reconciliation"
	TypeInvalidSnapshot    = "/errors/snapshot/invalid"
	TypeInvalidInstrument  = "/errors/instrument/invalid"
	TypeInstrumentNotFound = "/errors/instrument/not-found"
	TypeStorage            = "/errors/history/storage"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       infrastructure.WithComponent(logger, "error_handler"),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	problem.WithExtension("trace_id", traceID(r))
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The report exceeds the %d byte upload limit", tooLarge.Limit),
			path,
		).WithExtension("error_code", CodePayloadTooLarge)
	}

	if problem := snapshotProblem(err, path); problem != nil {
		return problem
	}

	switch {
	case errors.Is(err, history.ErrInvalidInstrument):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidInstrument,
			"Invalid Instrument",
			err.Error(),
			path,
		).WithExtension("error_code", CodeInvalidInstrument)

	case errors.Is(err, history.ErrInvalidSnapshot):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeInvalidSnapshot,
			"Snapshot Rejected",
			err.Error(),
			path,
		).WithExtension("error_code", CodeSnapshotRejected)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Resource Not Found",
			"The requested file does not exist",
			path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// snapshotProblem maps a parse or normalize rejection to 422
func snapshotProblem(err error, path string) *ProblemDetails {
	if !dataprocessing.IsSnapshotRejection(err) {
		return nil
	}

	var (
		layoutErr   *dataprocessing.LayoutError
		categoryErr *dataprocessing.UnknownCategoryError
		typeErr     *dataprocessing.UnknownPositionTypeError
		reconErr    *dataprocessing.ReconciliationError
	)
	problem := NewProblemDetails(http.StatusUnprocessableEntity, TypeSnapshotLayout,
		"Snapshot Rejected", err.Error(), path).
		WithExtension("error_code", CodeSnapshotRejected)

	switch {
	case errors.As(err, &layoutErr):
		problem.WithExtension("instrument", layoutErr.Instrument)
		if layoutErr.Row > 0 {
			problem.WithExtension("row", layoutErr.Row)
		}
		if !layoutErr.Date.IsZero() {
			problem.WithExtension("report_date", layoutErr.Date.Format(domain.DateFormat))
		}
	case errors.As(err, &categoryErr):
		problem.Type = TypeUnknownLabel
		problem.WithExtension("instrument", categoryErr.Instrument).
			WithExtension("row", categoryErr.Row).
			WithExtension("label", categoryErr.Label)
	case errors.As(err, &typeErr):
		problem.Type = TypeUnknownLabel
		problem.WithExtension("instrument", typeErr.Instrument).
			WithExtension("row", typeErr.Row).
			WithExtension("label", typeErr.Label)
	case errors.As(err, &reconErr):
		problem.Type = TypeReconciliation
		problem.WithExtension("instrument", reconErr.Instrument).
			WithExtension("report_date", reconErr.Date.Format(domain.DateFormat)).
			WithExtension("category", reconErr.Category).
			WithExtension("side", reconErr.Side).
			WithExtension("expected", reconErr.Expected.String()).
			WithExtension("actual", reconErr.Actual.String())
	}
	return problem
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeInvalidRequest, CodeValidationFailed, CodeInvalidDateRange:
		problemType = TypeValidation
	case CodeInvalidInstrument:
		problemType = TypeInvalidInstrument
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeInstrumentNotFound:
		problemType = TypeInstrumentNotFound
	case CodeSnapshotRejected:
		problemType = TypeInvalidSnapshot
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodeServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	status, problemType := http.StatusInternalServerError, TypeInternal
	switch appErr.Type {
	case ErrTypeValidation:
		status, problemType = http.StatusBadRequest, TypeValidation
	case ErrTypeParsing:
		status, problemType = http.StatusUnprocessableEntity, TypeSnapshotLayout
	case ErrTypeStorage:
		problemType = TypeStorage
	}

	detail := appErr.Message
	if status >= http.StatusInternalServerError {
		detail = "An unexpected error occurred while processing your request"
	}
	problem := NewProblemDetails(status, problemType, http.StatusText(status), detail, path).
		WithExtension("error_type", appErr.Type)
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID(r))

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", traceID(r))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", traceID(r))

	render.Render(w, r, problem)
}

// traceID prefers the run id set by the request middleware over chi's request id
func traceID(r *http.Request) string {
	if id := infrastructure.GetTraceID(r.Context()); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
