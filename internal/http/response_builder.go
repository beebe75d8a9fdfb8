// Package http exposes the tracker as a JSON API over net/http.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

// ResponseBuilder provides a fluent API for building enveloped responses.
type ResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewResponse starts a successful 200 response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.envelope.Data = v
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.envelope.Message = msg
	return b
}

// FieldErrors marks the response failed with per-field details.
func (b *ResponseBuilder) FieldErrors(errs []core.FieldError) *ResponseBuilder {
	b.envelope.Success = false
	b.envelope.Errors = errs
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.envelope); err != nil {
		slog.Error("Failed to encode response", "error", err, "status", b.statusCode)
	}
}

// ErrorResponse creates a failed response with a client-facing message.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	b := NewResponse().Status(statusCode).Message(message)
	b.envelope.Success = false
	return b
}

func writeOK(w http.ResponseWriter, data any) {
	NewResponse().Data(data).Write(w)
}

func writeCreated(w http.ResponseWriter, data any) {
	NewResponse().Status(http.StatusCreated).Data(data).Write(w)
}

func writeMessage(w http.ResponseWriter, msg string) {
	NewResponse().Message(msg).Write(w)
}
