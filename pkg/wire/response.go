package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ProbeMessage is the plain ASCII probe a controller writes to solicit a
// heartbeat style reply without queueing a setpoint.
const ProbeMessage = "HEARTBEAT"

// ErrMalformedResponse reports an inbound notification without a leading
// "<deviceId>:" token. Such responses are dropped, never fatal.
var ErrMalformedResponse = errors.New("malformed response")

// Response is a parsed device notification.
type Response struct {
	DeviceID int
	Payload  string
}

// Kind returns the payload's leading token in label form: "single",
// "multi", "multi_struct", "heartbeat", "error", or "other" for
// anything the firmware vocabulary does not cover.
func (r Response) Kind() string {
	tok, _, _ := strings.Cut(r.Payload, ":")
	switch tok {
	case "SINGLE":
		return "single"
	case "MULTI":
		return "multi"
	case "MULTI_STRUCT":
		return "multi_struct"
	case "HEARTBEAT":
		return "heartbeat"
	case "ERROR":
		return "error"
	default:
		return "other"
	}
}

// ParseResponse interprets a device notification of the form
// "<deviceId>:<payload>". Only the first colon terminates the id token;
// the payload keeps any further colons verbatim.
func ParseResponse(data []byte) (Response, error) {
	if !utf8.Valid(data) {
		return Response{}, fmt.Errorf("%w: not valid UTF-8", ErrMalformedResponse)
	}
	text := strings.TrimSpace(string(data))
	idTok, payload, ok := strings.Cut(text, ":")
	if !ok {
		return Response{}, fmt.Errorf("%w: no id separator in %q", ErrMalformedResponse, text)
	}
	id, err := strconv.Atoi(idTok)
	if err != nil || id < 1 {
		return Response{}, fmt.Errorf("%w: bad device id %q", ErrMalformedResponse, idTok)
	}
	return Response{DeviceID: id, Payload: payload}, nil
}
