// Package endpoint turns handler functions into HTTP handlers that speak the
// response envelope protocol, and provides the authentication and
// authorization wrappers applied to protected routes.
//
// A JSON endpoint answers with
//
//	{"Status": "Success"|"Error"|"Critical", "Message": "...", "Response": ...}
//
// where taxonomy errors (see package apierr) produce "Error" with their mapped
// status code and any other failure produces "Critical" with 500.
package endpoint

import (
	"iter"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/refitt/refitt-api/internal/apierr"
)

// Content types understood by Endpoint.
const (
	ContentJSON   = "application/json"
	ContentStream = "application/octet-stream"
)

// Handler produces the response for a request.
type Handler[T any] func(r *Request) (T, error)

// Stream is the result of a streaming handler. Chunks is consumed once; a
// non-nil error stops the response.
type Stream struct {
	Header http.Header
	Chunks iter.Seq2[[]byte, error]
}

// Endpoint wraps h for the given content type. ContentStream requires a
// Handler[*Stream]; any other combination answers every request with a
// Critical envelope.
func Endpoint[T any](contentType string, h Handler[T]) http.Handler {
	switch contentType {
	case ContentJSON:
		return jsonEndpoint(h)
	case ContentStream:
		if sh, ok := any(h).(Handler[*Stream]); ok {
			return streamEndpoint(sh)
		}
	}
	return notDefined(contentType)
}

// JSON is shorthand for Endpoint(ContentJSON, h).
func JSON[T any](h Handler[T]) http.Handler {
	return jsonEndpoint(h)
}

// Streaming is shorthand for Endpoint(ContentStream, h).
func Streaming(h Handler[*Stream]) http.Handler {
	return streamEndpoint(h)
}

// NotFound answers unmatched routes.
func NotFound() http.Handler {
	return jsonEndpoint(func(r *Request) (struct{}, error) {
		return struct{}{}, apierr.New(apierr.NotFound, "Not found: "+r.Path())
	})
}

func jsonEndpoint[T any](h Handler[T]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusInternalServerError
		defer func() { logRequest(r, status) }()

		out, err := invoke(h, NewRequest(r))
		if err != nil {
			status = WriteError(w, r, err)
			return
		}
		body, err := success(out)
		if err != nil {
			status = WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
		status = http.StatusOK
	})
}

func streamEndpoint(h Handler[*Stream]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusInternalServerError
		defer func() { logRequest(r, status) }()

		s, err := invoke(h, NewRequest(r))
		if err == nil && (s == nil || s.Chunks == nil) {
			err = errors.New("handler returned no stream")
		}
		if err != nil {
			status = WriteError(w, r, err)
			return
		}

		next, stop := iter.Pull2(s.Chunks)
		defer stop()

		// Failures before the first chunk still get an envelope.
		first, err, ok := next()
		if err != nil {
			status = WriteError(w, r, err)
			return
		}

		for k, v := range s.Header {
			w.Header()[k] = v
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", ContentStream)
		}
		w.WriteHeader(http.StatusOK)
		status = http.StatusOK

		rc := http.NewResponseController(w)
		ctx := r.Context()
		for chunk := first; ok; chunk, err, ok = next() {
			if err != nil {
				zctx.From(ctx).Error("Stream aborted", zap.Error(err))
				stop()
				// Close the connection so the client sees a truncated body.
				panic(http.ErrAbortHandler)
			}
			if ctx.Err() != nil {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				zctx.From(ctx).Debug("Stream write failed", zap.Error(err))
				return
			}
			_ = rc.Flush()
		}
	})
}

func notDefined(contentType string) http.Handler {
	body := envelope(StatusCritical, "Content-type not defined: '"+contentType+"'", nil)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, body)
		logRequest(r, http.StatusInternalServerError)
	})
}

func invoke[T any](h Handler[T], r *Request) (out T, err error) {
	defer func() {
		if p := recover(); p != nil {
			zctx.From(r.Context()).Error("Handler panic",
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return h(r)
}

// WriteError writes the envelope for err and returns the status code used.
func WriteError(w http.ResponseWriter, r *http.Request, err error) int {
	if e, ok := apierr.As(err); ok {
		status := e.Status()
		writeJSON(w, status, envelope(StatusError, e.Message, nil))
		return status
	}

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	zctx.From(ctx).Error("Critical error", zap.Error(err))

	writeJSON(w, http.StatusInternalServerError, envelope(StatusCritical, err.Error(), nil))
	return http.StatusInternalServerError
}

func logRequest(r *http.Request, status int) {
	zctx.From(r.Context()).Info("Request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	)
}
