package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "eexcot/internal/errors"
	"eexcot/internal/infrastructure"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// ContentTypeValidator ensures requests with a body have an allowed content type
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Content-Type")
			if header == "" {
				errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					apierrors.CodeInvalidRequest,
					"Content-Type header is required",
				))
				return
			}

			mediaType, _, err := mime.ParseMediaType(header)
			if err == nil {
				for _, allowed := range contentTypes {
					if strings.EqualFold(mediaType, allowed) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				apierrors.CodeInvalidRequest,
				"Unsupported content type",
				map[string]interface{}{
					"content_type": header,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// QueryParamValidator validates query parameters and answers with a problem
// response when one is malformed
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       infrastructure.WithComponent(logger, "query_validator"),
		errorHandler: errorHandler,
	}
}

// ValidateInt validates an integer query parameter
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}

// ValidateEnum validates an enum query parameter
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}

// ValidateDateRange reads the inclusive from/to window. Either bound may be
// omitted; nil means no window was requested.
func (v *QueryParamValidator) ValidateDateRange(w http.ResponseWriter, r *http.Request) (*domain.DateRange, bool) {
	window, err := ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		v.logger.DebugContext(r.Context(), "rejected date range",
			slog.String("query", r.URL.RawQuery),
			slog.String("error", err.Error()))
		v.errorHandler.HandleError(w, r, apierrors.InvalidDateRange(err.Error()))
		return nil, false
	}
	return window, true
}

// ParseDateRange parses YYYY-MM-DD bounds into a window; both empty yields nil
func ParseDateRange(from, to string) (*domain.DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}

	var window domain.DateRange
	var err error
	if from != "" {
		if window.From, err = time.Parse(domain.DateFormat, from); err != nil {
			return nil, fmt.Errorf("from must be a YYYY-MM-DD date, got %q", from)
		}
	}
	if to != "" {
		if window.To, err = time.Parse(domain.DateFormat, to); err != nil {
			return nil, fmt.Errorf("to must be a YYYY-MM-DD date, got %q", to)
		}
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.From.After(window.To) {
		return nil, fmt.Errorf("from %s is after to %s", from, to)
	}
	return &window, nil
}

// ValidateStruct runs the shared validator and converts field failures into
// a VALIDATION_FAILED API error
func ValidateStruct(v interface{}) error {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "instrument":
		return fmt.Sprintf("%s must be 1-%d upper-case letters or digits", field, validation.MaxInstrumentLength)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
