// Package services sits between the transports (HTTP handlers and the cot
// command) and the history store.
//
// IngestService runs a weekly report through the layout parser, the record
// normalizer and the store merge, one span per stage. Batches fan out across
// instruments on an errgroup while reports of one instrument stay in order,
// so replaying a directory oldest first leaves the latest publication in the
// store.
//
// SeriesService and ExportService read the stored series back, derive the
// week-over-week metrics and render them as JSON, CSV or xlsx.
//
// Errors come back as apierrors values or wrapped dataprocessing and history
// sentinels; the HTTP error handler maps them to problem details.
package services
