package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types the fulfillment bridge reacts to. Any other type is
// acknowledged and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
	EventChargeRefunded    = "charge.refunded"
	EventCheckoutExpired   = "checkout.session.expired"
)

// ErrInvalidSignature reports a webhook delivery whose signature header did
// not verify against the shared secret.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// DefaultTolerance bounds how old a signed webhook timestamp may be.
const DefaultTolerance = 5 * time.Minute

// Event is a verified webhook delivery.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SessionPayload is the object carried by checkout session events.
type SessionPayload struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	CustomerEmail string            `json:"customer_email"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// IntentPayload is the object carried by payment intent and charge events.
type IntentPayload struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

// IntentID returns the payment intent referenced by the payload. Charge
// events carry the intent in a separate field from intent events.
func (p IntentPayload) IntentID() string {
	if p.PaymentIntent != "" {
		return p.PaymentIntent
	}
	return p.ID
}

// Verifier checks webhook deliveries against the shared endpoint secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier builds a Verifier for the given endpoint secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("webhook secret required")
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}, nil
}

// WithClock overrides the verifier's time source. Tests use this to pin the
// timestamp tolerance window.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify checks a delivery's signature header against the raw request body.
// The header format is "t=<unix>,v1=<hex hmac>" where the hmac is computed
// over "<unix>.<body>" with SHA-256.
func (v *Verifier) Verify(body []byte, header string) error {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(v.secret, timestamp, body)
	for _, candidate := range signatures {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseEvent decodes a verified webhook body into an Event.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("webhook event missing type")
	}
	return &event, nil
}

// Session decodes the event data as a checkout session payload.
func (e *Event) Session() (*SessionPayload, error) {
	var wrapper struct {
		Object SessionPayload `json:"object"`
	}
	if err := json.Unmarshal(e.Data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	return &wrapper.Object, nil
}

// Intent decodes the event data as a payment intent or charge payload.
func (e *Event) Intent() (*IntentPayload, error) {
	var wrapper struct {
		Object IntentPayload `json:"object"`
	}
	if err := json.Unmarshal(e.Data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode intent payload: %w", err)
	}
	return &wrapper.Object, nil
}

// Sign produces a signature header for the given body. The server uses it
// only in tests; it mirrors what the provider sends.
func Sign(secret string, timestamp time.Time, body []byte) string {
	unix := timestamp.Unix()
	signature := computeSignature([]byte(secret), unix, body)
	return fmt.Sprintf("t=%d,v1=%s", unix, signature)
}

func computeSignature(secret []byte, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, errors.New("missing signature header")
	}

	var timestamp int64 = -1
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, errors.New("malformed timestamp")
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp < 0 {
		return 0, nil, errors.New("missing timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, errors.New("missing v1 signature")
	}
	return timestamp, signatures, nil
}
