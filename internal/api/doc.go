// Package api holds the HTTP surface shared by every route: the JSON response
// helpers, the error types handlers return, the error boundary that renders
// anything escaping a pipeline, and the metadata and health endpoints.
//
// Rejections raised by the pipeline stages answer directly with the same
// {"error": "..."} shape used here; only unexpected failures and malformed
// bodies reach the boundary. Server failures add a "details" field with the
// error text so operators can diagnose without reading logs.
package api
