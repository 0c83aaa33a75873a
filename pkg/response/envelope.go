package response

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// ContentTypeJSON is the content type of every envelope written to the wire.
const ContentTypeJSON = "application/json; charset=UTF-8"

var (
	// ErrEnvelopeWritten is returned by every mutation attempted after Write.
	ErrEnvelopeWritten = errors.New("envelope already written")
	// ErrInvalidStatus is returned when a status is not a valid HTTP code.
	ErrInvalidStatus = errors.New("invalid status code")
)

// Envelope is the uniform response structure produced by every handler.
// Handlers build it; the dispatcher writes it exactly once.
type Envelope struct {
	mu      sync.Mutex
	status  int
	message string
	count   *int64
	limit   *int64
	result  interface{}
	hasRes  bool
	headers map[string]string
	written bool
}

// New creates an envelope with the provided status. An invalid status is
// replaced by 500 so the envelope always carries a writable code.
func New(status int) *Envelope {
	if !validStatus(status) {
		return &Envelope{status: http.StatusInternalServerError, message: fmt.Sprintf("invalid status code %d", status)}
	}
	return &Envelope{status: status}
}

// OK builds a 200 envelope carrying result and its total count.
func OK(result interface{}, count int64) *Envelope {
	env := New(http.StatusOK)
	env.result, env.hasRes = result, true
	env.count = &count
	return env
}

// WithMessage builds an envelope with a status and a reason string.
func WithMessage(status int, message string) *Envelope {
	env := New(status)
	if env.message == "" {
		env.message = message
	}
	return env
}

func validStatus(status int) bool {
	return status >= 100 && status <= 599
}

// SetStatus replaces the status code.
func (e *Envelope) SetStatus(status int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	if !validStatus(status) {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	e.status = status
	return nil
}

// SetMessage sets the human readable reason.
func (e *Envelope) SetMessage(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	e.message = message
	return nil
}

// SetResult sets the result payload.
func (e *Envelope) SetResult(result interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	e.result, e.hasRes = result, true
	return nil
}

// SetCount sets the count field.
func (e *Envelope) SetCount(count int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	e.count = &count
	return nil
}

// SetLimit sets the limit field.
func (e *Envelope) SetLimit(limit int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	e.limit = &limit
	return nil
}

// SetHeader records a header override applied when the envelope is written.
func (e *Envelope) SetHeader(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	if e.headers == nil {
		e.headers = make(map[string]string)
	}
	e.headers[key] = value
	return nil
}

// Status returns the status code.
func (e *Envelope) Status() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Message returns the reason string.
func (e *Envelope) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Count returns the count and whether it was set.
func (e *Envelope) Count() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == nil {
		return 0, false
	}
	return *e.count, true
}

// Result returns the result payload.
func (e *Envelope) Result() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Headers returns a copy of the header overrides.
func (e *Envelope) Headers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.headers))
	for k, v := range e.headers {
		out[k] = v
	}
	return out
}

// Written reports whether the envelope has been sent.
func (e *Envelope) Written() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

// MarshalWire serialises the envelope as relaxed extended JSON so store
// identifiers and dates keep their $oid/$date markers.
func (e *Envelope) MarshalWire() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.marshalLocked()
}

func (e *Envelope) marshalLocked() ([]byte, error) {
	doc := bson.D{{Key: "code", Value: e.status}}
	if e.message != "" {
		doc = append(doc, bson.E{Key: "message", Value: e.message})
	}
	if e.count != nil {
		doc = append(doc, bson.E{Key: "count", Value: *e.count})
	}
	if e.limit != nil {
		doc = append(doc, bson.E{Key: "limit", Value: *e.limit})
	}
	if e.hasRes {
		doc = append(doc, bson.E{Key: "result", Value: normalizeResult(e.result)})
	}
	return bson.MarshalExtJSON(doc, false, false)
}

// normalizeResult keeps the wire result an array: nil slices become empty
// arrays and single values are wrapped.
func normalizeResult(result interface{}) interface{} {
	if result == nil {
		return bson.A{}
	}
	v := reflect.ValueOf(result)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return bson.A{}
		}
		return result
	case reflect.Array:
		return result
	default:
		return bson.A{result}
	}
}

// Write sends the envelope on the gin context. It succeeds once; later calls
// return ErrEnvelopeWritten and leave the connection untouched.
func (e *Envelope) Write(c *gin.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return ErrEnvelopeWritten
	}
	body, err := e.marshalLocked()
	if err != nil {
		e.status = http.StatusInternalServerError
		body = []byte(fmt.Sprintf(`{"code":%d,"message":%q}`, e.status, "unable to serialise response"))
	}
	e.written = true

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	for k, v := range e.headers {
		c.Header(k, v)
	}
	c.Data(e.status, ContentTypeJSON, body)
	return err
}
