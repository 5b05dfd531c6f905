// Package server exposes the explanation service over HTTP with gin.
//
// Routes:
//
//	GET /explain/:fileId/:address   explanation of one function
//	GET /functions/:fileId          the producer's function index
//	GET /health                     liveness
//	GET /metrics                    Prometheus exposition
//
// Failures are returned as {"detail": "...", "hint": "..."} with the status
// chosen by [StatusFor]. Every response carries an X-Request-ID header.
package server
