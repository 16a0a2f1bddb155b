package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/directorio/hub/internal/api/response"
)

// RequestBodyTooLargeRecorder counts requests rejected by MaxBody. Nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody rejects request bodies larger than maxBytes with 413. A declared Content-Length over
// the limit is rejected before the handler runs. Otherwise the body is capped while the handler
// reads it and the handler's response is held back so it can be replaced by the 413.
// maxBytes <= 0 disables the limit.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return &bodyLimiter{next: next, limit: maxBytes, recorder: recorder}
	}
}

type bodyLimiter struct {
	next     http.Handler
	limit    int64
	recorder RequestBodyTooLargeRecorder
}

func (l *bodyLimiter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > l.limit {
		l.reject(w, r)

		return
	}

	if r.Body == nil || r.Body == http.NoBody {
		l.next.ServeHTTP(w, r)

		return
	}

	body := &cappedBody{ReadCloser: http.MaxBytesReader(w, r.Body, l.limit)}
	r.Body = body

	held := &heldResponse{ResponseWriter: w}
	l.next.ServeHTTP(held, r)

	if body.exceeded {
		l.reject(w, r)

		return
	}

	held.release()
}

func (l *bodyLimiter) reject(w http.ResponseWriter, r *http.Request) {
	if l.recorder != nil {
		l.recorder.RecordRequestBodyTooLarge(r.Context())
	}

	response.RespondError(w, http.StatusRequestEntityTooLarge,
		"Request Entity Too Large", "request body exceeds maximum allowed size")
}

// cappedBody remembers whether the wrapped MaxBytesReader hit its limit.
type cappedBody struct {
	io.ReadCloser

	exceeded bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if err != nil && errors.As(err, &tooLarge) {
		b.exceeded = true
	}

	return n, err //nolint:wrapcheck // io.Reader callers compare against io.EOF
}

// heldResponse buffers the status and body until release.
type heldResponse struct {
	http.ResponseWriter

	status int
	body   bytes.Buffer
}

func (h *heldResponse) WriteHeader(status int) {
	if h.status == 0 {
		h.status = status
	}
}

func (h *heldResponse) Write(p []byte) (int, error) {
	return h.body.Write(p) //nolint:wrapcheck // bytes.Buffer only panics
}

func (h *heldResponse) release() {
	if h.status != 0 {
		h.ResponseWriter.WriteHeader(h.status)
	}

	_, _ = h.body.WriteTo(h.ResponseWriter)
}
