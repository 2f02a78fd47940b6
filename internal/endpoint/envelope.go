package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Envelope statuses.
const (
	StatusSuccess  = "Success"
	StatusError    = "Error"
	StatusCritical = "Critical"
)

// envelope renders {"Status":..., "Message":..., "Response":...}. Message is
// omitted when empty and Response when nil.
func envelope(status, message string, response []byte) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("Status", func(e *jx.Encoder) { e.Str(status) })
		if message != "" {
			e.Field("Message", func(e *jx.Encoder) { e.Str(message) })
		}
		if response != nil {
			e.Field("Response", func(e *jx.Encoder) { e.Raw(response) })
		}
	})
	return e.Bytes()
}

func success(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode response")
	}
	return envelope(StatusSuccess, "", raw), nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", ContentJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
