package endpoint

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/refitt/refitt-api/internal/apierr"
)

func failing[T any](err error) Handler[T] {
	return func(*Request) (T, error) {
		var zero T
		return zero, err
	}
}

func TestJSON_Success(t *testing.T) {
	h := JSON(func(*Request) (map[string]any, error) {
		return map[string]any{"user": map[string]int{"id": 3}}, nil
	})

	w := serve(h, http.MethodPost, "/user")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentJSON, w.Header().Get("Content-Type"))
	assert.Equal(t, `{"Status":"Success","Response":{"user":{"id":3}}}`, w.Body.String())
}

func TestJSON_TaxonomyErrors(t *testing.T) {
	kinds := []apierr.Kind{
		apierr.TokenNotFound,
		apierr.AuthenticationNotFound,
		apierr.TokenInvalid,
		apierr.AuthenticationInvalid,
		apierr.PermissionDenied,
		apierr.TokenExpired,
		apierr.RecordNotFound,
		apierr.NotFound,
		apierr.PayloadNotFound,
		apierr.PayloadMalformed,
		apierr.PayloadInvalid,
		apierr.ConstraintViolation,
		apierr.ParameterInvalid,
		apierr.NotImplemented,
		apierr.PayloadTooLarge,
		apierr.RateLimited,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			// Wrapping must not change the outcome.
			err := errors.Wrap(apierr.New(kind, "message for "+kind.String()), "handler")
			w := serve(JSON(failing[int](err)), http.MethodGet, "/")

			assert.Equal(t, kind.Status(), w.Code)
			b := decode(t, w)
			assert.Equal(t, StatusError, b.Status)
			assert.Equal(t, "message for "+kind.String(), b.Message)
			assert.Nil(t, b.Response)
		})
	}
}

func TestJSON_CriticalError(t *testing.T) {
	w := serve(JSON(failing[int](errors.New("database is on fire"))), http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"Status":"Critical","Message":"database is on fire"}`, w.Body.String())
}

func TestJSON_CriticalErrorRecordedOnSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	JSON(failing[int](errors.New("boom"))).ServeHTTP(w, req)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestJSON_Panic(t *testing.T) {
	h := JSON(func(*Request) (int, error) {
		panic("nil map")
	})

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	b := decode(t, w)
	assert.Equal(t, StatusCritical, b.Status)
	assert.Equal(t, "panic: nil map", b.Message)
}

func TestJSON_UnencodablePayload(t *testing.T) {
	h := JSON(func(*Request) (any, error) {
		return map[string]any{"f": func() {}}, nil
	})

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, StatusCritical, decode(t, w).Status)
}

func TestEndpoint_UnknownContentType(t *testing.T) {
	h := Endpoint("text/html", func(*Request) (int, error) { return 1, nil })

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"Status":"Critical","Message":"Content-type not defined: 'text/html'"}`, w.Body.String())
}

func TestEndpoint_StreamRequiresStreamHandler(t *testing.T) {
	h := Endpoint(ContentStream, func(*Request) (int, error) { return 1, nil })

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Content-type not defined: 'application/octet-stream'", decode(t, w).Message)
}

func chunks(parts ...string) func(yield func([]byte, error) bool) {
	return func(yield func([]byte, error) bool) {
		for _, p := range parts {
			if !yield([]byte(p), nil) {
				return
			}
		}
	}
}

func TestStream_Success(t *testing.T) {
	h := Endpoint(ContentStream, func(*Request) (*Stream, error) {
		return &Stream{
			Header: http.Header{"Content-Disposition": {"attachment; filename=obs.fits"}},
			Chunks: chunks("SIMPLE", "  = ", "T"),
		}, nil
	})

	w := serve(h, http.MethodGet, "/observation/1/file")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentStream, w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=obs.fits", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "SIMPLE  = T", w.Body.String())
	assert.True(t, w.Flushed)
}

func TestStream_HandlerErrorFallsBackToEnvelope(t *testing.T) {
	h := Streaming(failing[*Stream](apierr.New(apierr.RecordNotFound, "No observation with id=2")))

	w := serve(h, http.MethodGet, "/observation/2/file")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ContentJSON, w.Header().Get("Content-Type"))
	assert.Equal(t, `{"Status":"Error","Message":"No observation with id=2"}`, w.Body.String())
}

func TestStream_FirstChunkErrorFallsBackToEnvelope(t *testing.T) {
	h := Streaming(func(*Request) (*Stream, error) {
		return &Stream{Chunks: func(yield func([]byte, error) bool) {
			yield(nil, errors.New("read failed"))
		}}, nil
	})

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"Status":"Critical","Message":"read failed"}`, w.Body.String())
}

func TestStream_NilStream(t *testing.T) {
	h := Streaming(func(*Request) (*Stream, error) { return nil, nil })

	w := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, StatusCritical, decode(t, w).Status)
}

func TestStream_MidStreamErrorAborts(t *testing.T) {
	h := Streaming(func(*Request) (*Stream, error) {
		return &Stream{Chunks: func(yield func([]byte, error) bool) {
			if !yield([]byte("partial"), nil) {
				return
			}
			yield(nil, errors.New("disk gone"))
		}}, nil
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { h.ServeHTTP(w, req) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var produced int
	h := Streaming(func(*Request) (*Stream, error) {
		return &Stream{Chunks: func(yield func([]byte, error) bool) {
			for {
				produced++
				if produced == 2 {
					cancel()
				}
				if !yield([]byte("x"), nil) {
					return
				}
			}
		}}, nil
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "x", w.Body.String())
}

func TestNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /user/{user_id}", JSON(func(*Request) (int, error) { return 1, nil }))
	mux.Handle("/", NotFound())

	w := serve(mux, http.MethodGet, "/recommendation/next")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, `{"Status":"Error","Message":"Not found: /recommendation/next"}`, w.Body.String())
}

type userPayload struct {
	FirstName string `json:"first_name"`
	Alias     string `json:"alias"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind apierr.Kind
		msg  string
	}{
		{"empty", "", apierr.PayloadNotFound, "Missing JSON data"},
		{"blank", "  \n", apierr.PayloadNotFound, "Missing JSON data"},
		{"malformed", `{"first_name": "Ada"`, apierr.PayloadMalformed, "Invalid JSON data"},
		{"unknown field", `{"first_name": "Ada", "role": "admin"}`, apierr.PayloadInvalid, "Invalid parameters in JSON data"},
		{"wrong type", `{"first_name": 42}`, apierr.PayloadInvalid, "Invalid parameters in JSON data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(tt.body))
			var p userPayload
			err := NewRequest(req).DecodeJSON(&p)

			e, ok := apierr.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestDecodeJSON_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(`{"first_name":"Ada","alias":"ada"}`))
	r := NewRequest(req)

	var p userPayload
	require.NoError(t, r.DecodeJSON(&p))
	assert.Equal(t, userPayload{FirstName: "Ada", Alias: "ada"}, p)

	// The body is cached.
	data, err := r.Data()
	require.NoError(t, err)
	assert.Equal(t, `{"first_name":"Ada","alias":"ada"}`, string(data))
}

func TestData_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/observation/1/file", bytes.NewReader(make([]byte, 64)))
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	r := NewRequest(req)
	_, err := r.Data()
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.PayloadTooLarge, e.Kind)
	assert.Equal(t, "Payload exceeds 16 bytes", e.Message)

	_, again := r.Data()
	assert.Equal(t, err, again)
}

func TestIntParam(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /user/{user_id}", JSON(func(r *Request) (int64, error) {
		return r.IntParam("user_id")
	}))

	w := serve(mux, http.MethodGet, "/user/12")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"Status":"Success","Response":12}`, w.Body.String())

	w = serve(mux, http.MethodGet, "/user/ada")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Expected integer for 'user_id', found 'ada'", decode(t, w).Message)
}

func TestRequestLog(t *testing.T) {
	stream := func(parts ...any) Handler[*Stream] {
		return func(*Request) (*Stream, error) {
			return &Stream{Chunks: func(yield func([]byte, error) bool) {
				for _, p := range parts {
					var ok bool
					switch p := p.(type) {
					case error:
						ok = yield(nil, p)
					case string:
						ok = yield([]byte(p), nil)
					}
					if !ok {
						return
					}
				}
			}}, nil
		}
	}

	tests := []struct {
		name   string
		h      http.Handler
		status int
		aborts bool
	}{
		{"success", JSON(func(*Request) (int, error) { return 1, nil }), http.StatusOK, false},
		{"taxonomy error", JSON(failing[int](apierr.New(apierr.RecordNotFound, "No user with id=1"))), http.StatusNotFound, false},
		{"critical error", JSON(failing[int](errors.New("connection reset"))), http.StatusInternalServerError, false},
		{"handler panic", JSON(func(*Request) (int, error) { panic("index out of range") }), http.StatusInternalServerError, false},
		{"stream", Streaming(stream("a", "b")), http.StatusOK, false},
		{"stream first chunk error", Streaming(stream(errors.New("read failed"))), http.StatusInternalServerError, false},
		{"stream aborted", Streaming(stream("partial", errors.New("disk gone"))), http.StatusOK, true},
		{"content type not defined", Endpoint("text/csv", func(*Request) (int, error) { return 1, nil }), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			ctx := zctx.Base(context.Background(), zap.New(core))
			req := httptest.NewRequest(http.MethodGet, "/observation/7/file", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			if tt.aborts {
				assert.PanicsWithValue(t, http.ErrAbortHandler, func() { tt.h.ServeHTTP(w, req) })
			} else {
				tt.h.ServeHTTP(w, req)
			}
			assert.Equal(t, tt.status, w.Code)

			entries := logs.FilterMessage("Request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, map[string]any{
				"method": http.MethodGet,
				"path":   "/observation/7/file",
				"status": int64(tt.status),
			}, entries[0].ContextMap())
		})
	}
}
