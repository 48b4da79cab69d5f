// Package validation implements the asynchronous cross-service
// validation protocol: a correlator that turns fire-and-forget broker
// traffic into awaitable request/response calls, and per-domain
// responders that answer them.
package validation

import (
	"encoding/json"
	"time"
)

// Broker subjects per validation domain. One request subject and one
// reply subject each; the correlation id must round-trip byte-for-byte
// between them.
const (
	CustomerRequestSubject  = "validation.customer.request"
	CustomerResponseSubject = "validation.customer.response"
	ProductRequestSubject   = "validation.product.request"
	ProductResponseSubject  = "validation.product.response"
)

// Request is a validation question published to a request subject. It
// is ephemeral: it exists only as a broker message, never persisted.
type Request struct {
	RequestID  string    `json:"requestId" validate:"required"`
	SubjectRef string    `json:"subjectRef" validate:"required"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// Response is the single answer published for a Request. Exactly one
// Response is produced per identifiable Request, including when the
// responder-side lookup fails; in that case Error carries a
// human-readable description and the other outcome fields are zero.
type Response struct {
	RequestID   string          `json:"requestId"`
	SubjectRef  string          `json:"subjectRef"`
	Valid       bool            `json:"valid"`
	Active      *bool           `json:"active,omitempty"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	Error       string          `json:"error,omitempty"`
	RespondedAt time.Time       `json:"respondedAt"`
}

// Failed reports whether the peer answered with an error outcome. This
// is distinct from a correlator timeout: the peer said something went
// wrong, rather than saying nothing at all.
func (r *Response) Failed() bool {
	return r.Error != ""
}
