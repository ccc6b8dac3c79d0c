// Package http holds the chi handlers of the REST API.
//
// Handlers stay thin: they validate path and query parameters, call a
// service through a small interface and render the result with go-chi/render.
// Every failure goes through apierrors.ErrorHandler so clients always get an
// RFC 7807 problem document.
//
// Routes:
//
//	GET    /healthz                              store and directory health
//	GET    /healthz/live                         liveness
//	GET    /api/version                          build information
//	GET    /api/stats                            stored instruments and file counts
//	GET    /api/instruments                      instruments with stored history
//	GET    /api/instruments/{code}/series        metrics series (json, csv or xlsx)
//	GET    /api/instruments/{code}/summary       latest report date
//	GET    /api/instruments/{code}/compare       latest date against N weeks back
//	GET    /api/instruments/{code}/revisions     revision log
//	POST   /api/instruments/{code}/snapshots     upload a weekly report
//	DELETE /api/instruments/{code}               drop the instrument's history
package http
