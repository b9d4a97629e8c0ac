// Package server assembles the gateway's HTTP surface from a loaded route
// registry.
//
// Every request passes the same global middleware (request id, real client
// address, access log, metrics, security headers, CORS, call accounting and
// panic recovery) before chi dispatches it to a composed route pipeline, the
// metadata endpoint, or the operational endpoints /healthz and /metrics.
package server
