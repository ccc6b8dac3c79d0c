package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "eexcot/internal/errors"
	mw "eexcot/internal/middleware"
	"eexcot/internal/services"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// XLSXContentType is the media type of an uploaded weekly report
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultMaxUploadBytes bounds a report upload when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

type contextKey string

const instrumentKey contextKey = "instrument"

var seriesFormats = []string{"json", services.FormatCSV, services.FormatXLSX}

var positionTypeNames = []string{
	string(domain.PositionRiskReducing),
	string(domain.PositionOther),
	string(domain.PositionTotal),
}

// InstrumentHandler serves the per-instrument history and the upload endpoint
type InstrumentHandler struct {
	series         SeriesReader
	ingester       SnapshotIngester
	writer         SeriesWriter
	validator      *mw.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewInstrumentHandler creates the instrument handler. A non-positive
// maxUploadBytes falls back to DefaultMaxUploadBytes.
func NewInstrumentHandler(series SeriesReader, ingester SnapshotIngester, writer SeriesWriter, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *InstrumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	logger = logger.With(slog.String("component", "instrument_handler"))
	return &InstrumentHandler{
		series:         series,
		ingester:       ingester,
		writer:         writer,
		validator:      mw.NewQueryParamValidator(logger, errorHandler),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Routes mounts under /api/instruments
func (h *InstrumentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListInstruments)

	r.Route("/{code}", func(r chi.Router) {
		r.Use(h.InstrumentCtx)
		r.Delete("/", h.ResetInstrument)
		r.Get("/series", h.GetSeries)
		r.Get("/summary", h.GetSummary)
		r.Get("/compare", h.ComparePeriods)
		r.Get("/revisions", h.GetRevisions)
		r.With(mw.ContentTypeValidator(h.errorHandler,
			XLSXContentType, "application/octet-stream", "multipart/form-data",
		)).Post("/snapshots", h.UploadSnapshot)
	})

	return r
}

// InstrumentCtx validates the {code} parameter and stores the normalized code
func (h *InstrumentHandler) InstrumentCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "code")
		code := validation.NormalizeInstrument(raw)
		if !validation.ValidInstrument(code) {
			h.errorHandler.HandleError(w, r, apierrors.InvalidInstrument(raw))
			return
		}
		ctx := context.WithValue(r.Context(), instrumentKey, code)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func instrumentFrom(ctx context.Context) string {
	code, _ := ctx.Value(instrumentKey).(string)
	return code
}

// ListInstruments handles GET /api/instruments
func (h *InstrumentHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	infos, err := h.series.Instruments(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"instruments": infos,
		"count":       len(infos),
	})
}

// GetSeries handles GET /api/instruments/{code}/series.
//
// Query parameters: position_type, category (comma separated), from, to and
// format (json, csv or xlsx).
func (h *InstrumentHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	code := instrumentFrom(r.Context())

	q, ok := h.seriesQuery(w, r)
	if !ok {
		return
	}
	format, ok := h.validator.ValidateEnum(w, r, "format", seriesFormats, "json")
	if !ok {
		return
	}

	if format != "json" {
		h.writeDownload(w, r, code, format, q)
		return
	}

	ser, err := h.series.Series(r.Context(), code, q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ser)
}

func (h *InstrumentHandler) seriesQuery(w http.ResponseWriter, r *http.Request) (services.SeriesQuery, bool) {
	var q services.SeriesQuery

	ptype, ok := h.validator.ValidateEnum(w, r, "position_type", positionTypeNames, "")
	if !ok {
		return q, false
	}
	q.PositionType = domain.PositionType(ptype)

	if q.Window, ok = h.validator.ValidateDateRange(w, r); !ok {
		return q, false
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			c, err := domain.ParseCategory(strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				h.errorHandler.HandleError(w, r, apierrors.ErrValidation("category", err.Error()))
				return q, false
			}
			q.Categories = append(q.Categories, c)
		}
	}
	return q, true
}

// writeDownload renders into a buffer first so a failure still yields a
// problem response instead of a truncated file
func (h *InstrumentHandler) writeDownload(w http.ResponseWriter, r *http.Request, code, format string, q services.SeriesQuery) {
	var buf bytes.Buffer
	if err := h.writer.Write(r.Context(), &buf, code, format, q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == services.FormatXLSX {
		contentType = XLSXContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": fmt.Sprintf("%s_report.%s", code, format)}))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// GetSummary handles GET /api/instruments/{code}/summary
func (h *InstrumentHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.series.Summary(r.Context(), instrumentFrom(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// ComparePeriods handles GET /api/instruments/{code}/compare?weeks=N
func (h *InstrumentHandler) ComparePeriods(w http.ResponseWriter, r *http.Request) {
	weeks, ok := h.validator.ValidateInt(w, r, "weeks", 1, 520, 4)
	if !ok {
		return
	}
	code := instrumentFrom(r.Context())
	cmp, err := h.series.Compare(r.Context(), code, weeks)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"instrument":  code,
		"weeks":       weeks,
		"comparisons": cmp,
	})
}

// GetRevisions handles GET /api/instruments/{code}/revisions
func (h *InstrumentHandler) GetRevisions(w http.ResponseWriter, r *http.Request) {
	code := instrumentFrom(r.Context())
	revs, err := h.series.Revisions(r.Context(), code)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"instrument": code,
		"revisions":  revs,
		"count":      len(revs),
	})
}

// ResetInstrument handles DELETE /api/instruments/{code}
func (h *InstrumentHandler) ResetInstrument(w http.ResponseWriter, r *http.Request) {
	code := instrumentFrom(r.Context())
	if err := h.series.Reset(r.Context(), code); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "instrument reset",
		slog.String("instrument", code),
		slog.String("request_id", mw.GetRequestID(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// UploadSnapshot handles POST /api/instruments/{code}/snapshots. The body is
// the xlsx report itself or a multipart form with a "file" part. from and to
// restrict the merged dates; archive=false skips keeping a copy.
func (h *InstrumentHandler) UploadSnapshot(w http.ResponseWriter, r *http.Request) {
	code := instrumentFrom(r.Context())
	reqID := mw.GetRequestID(r.Context())

	window, ok := h.validator.ValidateDateRange(w, r)
	if !ok {
		return
	}
	params := uploadParams{Archive: r.URL.Query().Get("archive")}
	if err := mw.ValidateStruct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	body, source, err := uploadBody(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "snapshot upload",
		slog.String("instrument", code),
		slog.String("source", source),
		slog.String("request_id", reqID))

	res, err := h.ingester.Ingest(r.Context(), services.IngestRequest{
		Instrument: code,
		Workbook:   body,
		Window:     window,
		Source:     source,
		Archive:    params.Archive != "false",
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Merge.Changed() {
		status = http.StatusCreated
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

type uploadParams struct {
	Archive string `json:"archive" validate:"omitempty,oneof=true false"`
}

// uploadBody returns the workbook stream and a name for it
func uploadBody(r *http.Request) (io.Reader, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "upload.xlsx", nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", apierrors.InvalidRequestWithError(err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", apierrors.ErrValidation("file", "multipart upload has no file part")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, "", err
			}
			return nil, "", apierrors.InvalidRequestWithError(err)
		}
		if part.FormName() == "file" {
			name := part.FileName()
			if name == "" {
				name = "upload.xlsx"
			}
			return part, name, nil
		}
		part.Close()
	}
}
