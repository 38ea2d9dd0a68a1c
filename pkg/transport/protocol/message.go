package protocol

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

// ErrDecode matches every decode failure via errors.Is
var ErrDecode = errors.New(errors.ErrorTypeProtocol, "DECODE_ERROR", "malformed message")

// Codec defines the client side of the wire
type Codec interface {
	// EncodeIntent encodes an outbound intent. It never fails for an intent
	// that passes Validate.
	EncodeIntent(intent domain.Intent) []byte

	// DecodeEvent decodes and validates an inbound event
	DecodeEvent(data []byte) (domain.InboundEvent, error)
}

// valueMessage is the wire shape of create, set and counter
type valueMessage struct {
	Type    domain.MessageType `json:"type"`
	Counter domain.CounterName `json:"counter"`
	Value   int64              `json:"value"`
}

// nameMessage is the wire shape of increment, decrement, delete and deleted
type nameMessage struct {
	Type    domain.MessageType `json:"type"`
	Counter domain.CounterName `json:"counter"`
}

type envelope struct {
	Type *string `json:"type"`
}

type fields struct {
	Counter *string         `json:"counter"`
	Value   json.RawMessage `json:"value"`
}

// JSONCodec implements Codec using JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// EncodeIntent implements Codec
func (c *JSONCodec) EncodeIntent(intent domain.Intent) []byte {
	return encode(intent.Type, intent.Name, intent.Value)
}

// EncodeEvent encodes a server event
func (c *JSONCodec) EncodeEvent(event domain.InboundEvent) []byte {
	switch ev := event.(type) {
	case domain.CounterUpdated:
		return encode(domain.MessageTypeCounter, ev.Name, ev.Value)
	case domain.CounterDeleted:
		return encode(domain.MessageTypeDeleted, ev.Name, 0)
	default:
		return marshal(struct {
			Type domain.MessageType `json:"type"`
		}{Type: event.Type()})
	}
}

// DecodeEvent implements Codec. Unrecognized discriminators decode to
// domain.Unknown without looking at the other fields.
func (c *JSONCodec) DecodeEvent(data []byte) (domain.InboundEvent, error) {
	messageType, err := decodeType(data)
	if err != nil {
		return nil, err
	}

	switch messageType {
	case domain.MessageTypeCounter:
		name, value, err := decodeFields(data, true)
		if err != nil {
			return nil, err
		}
		return domain.CounterUpdated{Name: name, Value: value}, nil
	case domain.MessageTypeDeleted:
		name, _, err := decodeFields(data, false)
		if err != nil {
			return nil, err
		}
		return domain.CounterDeleted{Name: name}, nil
	default:
		return domain.Unknown{Kind: string(messageType)}, nil
	}
}

// DecodeIntent decodes and validates an intent received by a server
func (c *JSONCodec) DecodeIntent(data []byte) (domain.Intent, error) {
	messageType, err := decodeType(data)
	if err != nil {
		return domain.Intent{}, err
	}

	if !messageType.IsIntent() {
		return domain.Intent{}, decodeError("unknown intent type %q", messageType)
	}

	name, value, err := decodeFields(data, messageType.CarriesValue())
	if err != nil {
		return domain.Intent{}, err
	}

	return domain.Intent{Type: messageType, Name: name, Value: value}, nil
}

func encode(messageType domain.MessageType, name domain.CounterName, value int64) []byte {
	if messageType.CarriesValue() {
		return marshal(valueMessage{Type: messageType, Counter: name, Value: value})
	}
	return marshal(nameMessage{Type: messageType, Counter: name})
}

// marshal only sees structs of strings and integers, which always encode.
func marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: unreachable marshal failure: %v", err))
	}
	return data
}

func decodeType(data []byte) (domain.MessageType, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeProtocol, ErrDecode.Code, ErrDecode.Message).
			WithDetails("payload is not a JSON object with a string type")
	}
	if env.Type == nil {
		return "", decodeError("missing type")
	}
	return domain.MessageType(*env.Type), nil
}

func decodeFields(data []byte, withValue bool) (domain.CounterName, int64, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return "", 0, errors.Wrap(err, errors.ErrorTypeProtocol, ErrDecode.Code, ErrDecode.Message).
			WithDetails("invalid field types")
	}

	if f.Counter == nil {
		return "", 0, decodeError("missing counter")
	}
	if *f.Counter == "" {
		return "", 0, decodeError("empty counter")
	}

	if !withValue {
		return domain.CounterName(*f.Counter), 0, nil
	}

	value, err := parseValue(f.Value)
	if err != nil {
		return "", 0, err
	}

	return domain.CounterName(*f.Counter), value, nil
}

// parseValue accepts JSON numbers with an integral value that fits in int64.
// Fractional and exponent forms are parsed exactly so nothing is rounded into
// range.
func parseValue(raw json.RawMessage) (int64, error) {
	s := string(raw)
	if s == "" || s == "null" {
		return 0, decodeError("missing value")
	}
	if s[0] != '-' && (s[0] < '0' || s[0] > '9') {
		return 0, decodeError("value is not a number: %s", s)
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		return 0, decodeError("value is out of range: %s", s)
	}

	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return 0, decodeError("value is out of range: %s", s)
	}
	if !f.IsInt() {
		return 0, decodeError("value is not an integer: %s", s)
	}

	i, acc := f.Int64()
	if acc != big.Exact {
		return 0, decodeError("value is out of range: %s", s)
	}
	return i, nil
}

func decodeError(format string, args ...any) *errors.Error {
	return errors.New(errors.ErrorTypeProtocol, ErrDecode.Code, ErrDecode.Message).
		WithDetails(fmt.Sprintf(format, args...))
}
