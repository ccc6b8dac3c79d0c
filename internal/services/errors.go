package services

import "errors"

// Ingestion errors
var (
	// ErrNoInput means a request carried neither a grid nor a workbook
	ErrNoInput = errors.New("ingest request has no grid or workbook")
	// ErrAmbiguousInput means a request carried both a grid and a workbook
	ErrAmbiguousInput = errors.New("ingest request has both a grid and a workbook")
	// ErrUnsupportedFormat rejects an export format other than csv or xlsx
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
