package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"endpointhub/internal/jsoncodec"
)

// MaxBodyBytes caps how much of a request body is buffered for validation and decoding.
const MaxBodyBytes = 10 << 20

const formContentType = "application/x-www-form-urlencoded"

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = jsoncodec.Encode(w, payload)
}

// WriteJSON is an exported helper for returning JSON API responses.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	writeJSON(w, status, payload)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

// WriteRequestError renders a RequestError with its own status.
func WriteRequestError(w http.ResponseWriter, err RequestError) {
	writeJSON(w, err.StatusCode(), errorBody{Error: err.Message})
}

// ReadBody buffers the request body and puts an identical reader back on the
// request so later stages can consume it again.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return nil, RequestError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// DecodeJSON decodes the request body into dest. A body that is not valid
// JSON yields a *MalformedBodyError; a valid document of the wrong shape
// yields a 400 RequestError.
func DecodeJSON(r *http.Request, dest interface{}) error {
	data, err := ReadBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ValidationError("request body is required")
	}
	if !jsoncodec.Valid(data) {
		return &MalformedBodyError{Err: errors.New("body is not valid JSON")}
	}
	if err := jsoncodec.Unmarshal(data, dest); err != nil {
		return ValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// DecodeJSONObject parses the body as a JSON object. An empty body decodes to
// an empty map so callers can report missing fields instead of a parse error.
func DecodeJSONObject(r *http.Request) (map[string]any, error) {
	data, err := ReadBody(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	if !jsoncodec.Valid(data) {
		return nil, &MalformedBodyError{Err: errors.New("body is not valid JSON")}
	}
	var payload map[string]any
	if err := jsoncodec.Unmarshal(data, &payload); err != nil {
		return nil, ValidationError("request body must be a JSON object")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// DecodeRequestObject reads a form-encoded body as form values and any other
// body as a JSON object.
func DecodeRequestObject(r *http.Request) (map[string]any, error) {
	if IsFormRequest(r) {
		return DecodeFormObject(r)
	}
	return DecodeJSONObject(r)
}

// IsFormRequest reports whether the request body is URL-encoded form data.
func IsFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == formContentType
}

// DecodeFormObject parses a URL-encoded body. A field sent once maps to its
// string value; a repeated field, or one named with a trailing "[]", maps to
// a list. Query string values are not included.
func DecodeFormObject(r *http.Request) (map[string]any, error) {
	data, err := ReadBody(r)
	if err != nil {
		return nil, err
	}
	r.PostForm = nil
	if err := r.ParseForm(); err != nil {
		return nil, ValidationError("Invalid form payload")
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	fields := make(map[string][]string, len(r.PostForm))
	lists := make(map[string]bool)
	for name, list := range r.PostForm {
		key := strings.TrimSuffix(name, "[]")
		if key != name {
			lists[key] = true
		}
		fields[key] = append(fields[key], list...)
	}

	payload := make(map[string]any, len(fields))
	for key, list := range fields {
		if len(list) == 1 && !lists[key] {
			payload[key] = list[0]
			continue
		}
		items := make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}
		payload[key] = items
	}
	return payload, nil
}
