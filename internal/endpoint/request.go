package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/refitt/refitt-api/internal/apierr"
)

// Request is the request-scoped view handed to endpoint handlers.
type Request struct {
	r    *http.Request
	body []byte
	err  error
	read bool
}

// NewRequest wraps r.
func NewRequest(r *http.Request) *Request {
	return &Request{r: r}
}

func (r *Request) Context() context.Context { return r.r.Context() }
func (r *Request) Method() string           { return r.r.Method }
func (r *Request) Path() string             { return r.r.URL.Path }
func (r *Request) Header() http.Header      { return r.r.Header }
func (r *Request) Query() url.Values        { return r.r.URL.Query() }

// Param returns the named path parameter.
func (r *Request) Param(name string) string {
	return r.r.PathValue(name)
}

// IntParam returns the named path parameter as an integer.
func (r *Request) IntParam(name string) (int64, error) {
	v := r.r.PathValue(name)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apierr.Wrap(apierr.ParameterInvalid, err,
			"Expected integer for '"+name+"', found '"+v+"'")
	}
	return n, nil
}

// Data reads the request body once and returns it.
func (r *Request) Data() ([]byte, error) {
	if !r.read {
		r.read = true
		r.body, r.err = readBody(r.r.Body)
	}
	return r.body, r.err
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apierr.Wrap(apierr.PayloadTooLarge, err,
				"Payload exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes")
		}
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

// DecodeJSON decodes the body into v. Unknown fields are rejected.
func (r *Request) DecodeJSON(v any) error {
	data, err := r.Data()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return apierr.New(apierr.PayloadNotFound, "Missing JSON data")
	}
	if !jx.Valid(data) {
		return apierr.New(apierr.PayloadMalformed, "Invalid JSON data")
	}
	d := json.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return apierr.Wrap(apierr.PayloadMalformed, err, "Invalid JSON data")
		}
		return apierr.Wrap(apierr.PayloadInvalid, err, "Invalid parameters in JSON data")
	}
	return nil
}

// Bearer returns the token from an "Authorization: Bearer <token>" header.
func (r *Request) Bearer() (string, bool) {
	scheme, tok, ok := strings.Cut(r.r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// BasicAuth returns the key and secret of an HTTP Basic Authorization header.
func (r *Request) BasicAuth() (key, secret string, ok bool) {
	key, secret, ok = r.r.BasicAuth()
	return key, secret, ok && key != "" && secret != ""
}
