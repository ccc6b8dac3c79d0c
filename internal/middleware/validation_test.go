package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "eexcot/internal/errors"
	"eexcot/pkg/contracts/domain"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func newValidator(t *testing.T) *QueryParamValidator {
	t.Helper()
	return NewQueryParamValidator(quietLogger(), apierrors.NewErrorHandler(quietLogger(), false))
}

func TestContentTypeValidator(t *testing.T) {
	mw := ContentTypeValidator(apierrors.NewErrorHandler(quietLogger(), false), xlsxMIME, "multipart/form-data")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{name: "get passes", method: http.MethodGet, want: http.StatusAccepted},
		{name: "xlsx body", method: http.MethodPost, contentType: xlsxMIME, want: http.StatusAccepted},
		{name: "multipart with boundary", method: http.MethodPost, contentType: "multipart/form-data; boundary=xyz", want: http.StatusAccepted},
		{name: "missing header", method: http.MethodPost, want: http.StatusBadRequest},
		{name: "json refused", method: http.MethodPost, contentType: "application/json", want: http.StatusUnsupportedMediaType},
		{name: "garbage header", method: http.MethodPost, contentType: ";;", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/instruments/DEBM/snapshots", strings.NewReader("x"))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestValidateInt(t *testing.T) {
	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{query: "", want: 4, wantOK: true},
		{query: "weeks=12", want: 12, wantOK: true},
		{query: "weeks=abc"},
		{query: "weeks=0"},
		{query: "weeks=53"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			v := newValidator(t)
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/instruments/DEBM/compare?"+tt.query, nil)

			got, ok := v.ValidateInt(w, r, "weeks", 1, 52, 4)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), "weeks")
			}
		})
	}
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"risk_reducing", "other", "total"}
	v := newValidator(t)

	w := httptest.NewRecorder()
	got, ok := v.ValidateEnum(w, httptest.NewRequest(http.MethodGet, "/?position_type=TOTAL", nil), "position_type", allowed, "")
	assert.True(t, ok)
	assert.Equal(t, "total", got)

	got, ok = v.ValidateEnum(w, httptest.NewRequest(http.MethodGet, "/", nil), "position_type", allowed, "total")
	assert.True(t, ok)
	assert.Equal(t, "total", got)

	w = httptest.NewRecorder()
	_, ok = v.ValidateEnum(w, httptest.NewRequest(http.MethodGet, "/?position_type=net", nil), "position_type", allowed, "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "risk_reducing, other, total")
}

func TestParseDateRange(t *testing.T) {
	jan2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	jan23 := time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    string
		to      string
		want    *domain.DateRange
		wantErr string
	}{
		{name: "no window"},
		{name: "both bounds", from: "2026-01-02", to: "2026-01-23", want: &domain.DateRange{From: jan2, To: jan23}},
		{name: "open end", from: "2026-01-02", want: &domain.DateRange{From: jan2}},
		{name: "open start", to: " 2026-01-23 ", want: &domain.DateRange{To: jan23}},
		{name: "same day", from: "2026-01-23", to: "2026-01-23", want: &domain.DateRange{From: jan23, To: jan23}},
		{name: "bad from", from: "23/01/2026", wantErr: "from must be"},
		{name: "bad to", to: "yesterday", wantErr: "to must be"},
		{name: "inverted", from: "2026-01-23", to: "2026-01-02", wantErr: "is after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateRange(tt.from, tt.to)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateDateRangeWritesProblem(t *testing.T) {
	v := newValidator(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/instruments/DEBM/series?from=2026-02-01&to=2026-01-01", nil)

	window, ok := v.ValidateDateRange(w, r)
	assert.False(t, ok)
	assert.Nil(t, window)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apierrors.CodeInvalidDateRange)
}

func TestValidateStruct(t *testing.T) {
	type upload struct {
		Instrument string `json:"instrument" validate:"required,instrument"`
		Weeks      int    `json:"weeks" validate:"gte=1,lte=52"`
	}

	assert.NoError(t, ValidateStruct(upload{Instrument: "DEBM", Weeks: 4}))

	err := ValidateStruct(upload{Instrument: "de-bm", Weeks: 60})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.CodeValidationFailed, apiErr.ErrorCode)
	verrs, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	require.Len(t, verrs.Errors, 2)
	assert.Equal(t, "instrument", verrs.Errors[0].Field)
	assert.Contains(t, verrs.Errors[0].Message, "upper-case letters or digits")
	assert.Equal(t, "weeks", verrs.Errors[1].Field)
	assert.Equal(t, "weeks must be less than or equal to 52", verrs.Errors[1].Message)
}
