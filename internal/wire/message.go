package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the fixed, ordered set of message kinds the system ever sends.
type Kind uint8

const (
	PizzaOrder Kind = iota + 1
	PizzaCompleted
	StatusRequest
	StatusResponse
	Shutdown
	Heartbeat
)

func (k Kind) String() string {
	switch k {
	case PizzaOrder:
		return "PizzaOrder"
	case PizzaCompleted:
		return "PizzaCompleted"
	case StatusRequest:
		return "StatusRequest"
	case StatusResponse:
		return "StatusResponse"
	case Shutdown:
		return "Shutdown"
	case Heartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// Message is the envelope carried over the named queue transport.
type Message struct {
	Type      Kind
	SenderID  uint32
	Timestamp uint32
	Payload   []byte
}

// Serialize renders the envelope as
// "<type>|<senderId>|<timestamp>|<payloadLen>|<hexPayload>".
func (m Message) Serialize() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(m.Type)))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(m.SenderID), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(m.Timestamp), 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(m.Payload)))
	b.WriteByte('|')
	b.WriteString(hexEncode(m.Payload))
	return b.String()
}

// Deserialize parses the envelope format, failing with ErrMessage on
// any malformed field or short payload.
func Deserialize(data string) (Message, error) {
	parts := strings.SplitN(data, "|", 5)
	if len(parts) != 5 {
		return Message{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrMessage, len(parts))
	}

	typeVal, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Message{}, fmt.Errorf("%w: invalid type field: %v", ErrMessage, err)
	}
	senderID, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Message{}, fmt.Errorf("%w: invalid senderId field: %v", ErrMessage, err)
	}
	timestamp, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Message{}, fmt.Errorf("%w: invalid timestamp field: %v", ErrMessage, err)
	}
	payloadLen, err := strconv.Atoi(parts[3])
	if err != nil || payloadLen < 0 {
		return Message{}, fmt.Errorf("%w: invalid payloadLen field", ErrMessage)
	}

	payload, err := hexDecode(parts[4])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMessage, err)
	}
	if len(payload) != payloadLen {
		return Message{}, fmt.Errorf("%w: payload length mismatch, header says %d, got %d", ErrMessage, payloadLen, len(payload))
	}

	return Message{
		Type:      Kind(typeVal),
		SenderID:  uint32(senderID),
		Timestamp: uint32(timestamp),
		Payload:   payload,
	}, nil
}

func hexEncode(b []byte) string {
	buf := NewBuffer()
	buf.data = b
	return buf.ToHex()
}

func hexDecode(s string) ([]byte, error) {
	buf, err := FromHex(s)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
