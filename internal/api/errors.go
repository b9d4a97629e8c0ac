package api

import (
	"net/http"
)

// RequestError is a client-visible failure carrying its HTTP status. Handlers
// return it to have the error boundary answer with that status instead of 500.
type RequestError struct {
	Status  int
	Message string
}

func (e RequestError) Error() string {
	return e.Message
}

// StatusCode falls back to 400 when no status was set.
func (e RequestError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func ValidationError(message string) RequestError {
	return RequestError{Status: http.StatusBadRequest, Message: message}
}

func ForbiddenError(message string) RequestError {
	return RequestError{Status: http.StatusForbidden, Message: message}
}

func NotFoundError(message string) RequestError {
	return RequestError{Status: http.StatusNotFound, Message: message}
}

func TooManyRequestsError(message string) RequestError {
	return RequestError{Status: http.StatusTooManyRequests, Message: message}
}

func BadGatewayError(message string) RequestError {
	return RequestError{Status: http.StatusBadGateway, Message: message}
}

func ServiceUnavailableError(message string) RequestError {
	return RequestError{Status: http.StatusServiceUnavailable, Message: message}
}

// MalformedBodyError marks a request body that could not be parsed as JSON.
type MalformedBodyError struct {
	Err error
}

func (e *MalformedBodyError) Error() string {
	if e == nil || e.Err == nil {
		return "malformed JSON body"
	}
	return "malformed JSON body: " + e.Err.Error()
}

func (e *MalformedBodyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
