package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finbank/backend/internal/infrastructure/broker"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// defaultLookupTimeout bounds a single responder-side lookup.
const defaultLookupTimeout = 5 * time.Second

// Result is the outcome of a responder-side lookup.
type Result struct {
	// Valid reports whether the referenced entity exists.
	Valid bool
	// Active, when non-nil, reports the entity's active state.
	Active *bool
	// Detail, when non-nil, is marshaled into the response's detail
	// payload (e.g. product pricing attributes).
	Detail any
}

// LookupFunc answers a validation question for one subject reference.
// Returning an error produces an error response to the caller, never
// silence.
type LookupFunc func(ctx context.Context, subjectRef string) (Result, error)

// Responder consumes one request subject and guarantees exactly one
// published response per identifiable request, including on lookup
// failure. Structurally malformed requests carry no usable correlation
// id, so no response is owed; they are logged and discarded.
type Responder struct {
	bus            broker.Bus
	requestSubject string
	replySubject   string
	lookup         LookupFunc
	validate       *validator.Validate
	clock          clock.Clock
	logger         *zap.Logger
	lookupTimeout  time.Duration
	sub            broker.Subscription
}

// ResponderConfig wires a Responder to its domain.
type ResponderConfig struct {
	RequestSubject string
	ReplySubject   string
	Lookup         LookupFunc
	// LookupTimeout bounds one lookup; zero means the default.
	LookupTimeout time.Duration
}

// NewResponder creates a Responder. Call Start to begin consuming.
func NewResponder(bus broker.Bus, cfg ResponderConfig, clk clock.Clock, logger *zap.Logger) *Responder {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Responder{
		bus:            bus,
		requestSubject: cfg.RequestSubject,
		replySubject:   cfg.ReplySubject,
		lookup:         cfg.Lookup,
		validate:       validator.New(),
		clock:          clk,
		logger:         logger.With(zap.String("request_subject", cfg.RequestSubject)),
		lookupTimeout:  timeout,
	}
}

// Start subscribes the responder to its request subject.
func (r *Responder) Start() error {
	sub, err := r.bus.Subscribe(r.requestSubject, r.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe responder: %w", err)
	}
	r.sub = sub
	r.logger.Info("validation responder started")
	return nil
}

// Stop unsubscribes the responder.
func (r *Responder) Stop() {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Warn("failed to unsubscribe responder", zap.Error(err))
		}
		r.sub = nil
	}
}

// handle processes one consumed request. A panic anywhere in the lookup
// is converted into an error response; the consumer loop itself never
// crashes.
func (r *Responder) handle(msg broker.Message) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.logger.Warn("discarding undecodable validation request", zap.Error(err))
		return
	}
	if err := r.validate.Struct(&req); err != nil {
		// Missing request id or subject reference: unidentifiable, no
		// response owed
		r.logger.Warn("discarding malformed validation request",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return
	}

	resp := r.answer(&req)
	payload, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("failed to encode validation response",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return
	}
	if err := r.bus.Publish(r.replySubject, payload); err != nil {
		r.logger.Error("failed to publish validation response",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
	}
}

// answer runs the lookup and builds the single response for req.
func (r *Responder) answer(req *Request) (resp *Response) {
	resp = &Response{
		RequestID:  req.RequestID,
		SubjectRef: req.SubjectRef,
	}
	defer func() {
		resp.RespondedAt = r.clock.Now()
		if rec := recover(); rec != nil {
			r.logger.Error("validation lookup panicked",
				zap.String("request_id", req.RequestID),
				zap.Any("panic", rec))
			*resp = Response{
				RequestID:   req.RequestID,
				SubjectRef:  req.SubjectRef,
				Error:       fmt.Sprintf("internal error: %v", rec),
				RespondedAt: r.clock.Now(),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()

	result, err := r.lookup(ctx, req.SubjectRef)
	if err != nil {
		r.logger.Warn("validation lookup failed",
			zap.String("request_id", req.RequestID),
			zap.String("subject_ref", req.SubjectRef),
			zap.Error(err))
		resp.Error = err.Error()
		return resp
	}

	resp.Valid = result.Valid
	resp.Active = result.Active
	if result.Detail != nil {
		detail, err := json.Marshal(result.Detail)
		if err != nil {
			resp.Error = "failed to encode lookup detail"
			return resp
		}
		resp.Detail = detail
	}
	return resp
}
