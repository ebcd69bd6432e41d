package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRemoteClosed is returned when a SockJS close frame arrives.
var ErrRemoteClosed = errors.New("sockjs: remote closed session")

// Codec converts between websocket messages and protocol frames.
type Codec interface {
	// Decode returns the frames carried by one websocket message.
	Decode(msg []byte) ([]string, error)
	// Encode wraps one outbound line.
	Encode(line string) ([]byte, error)
}

// NewCodec returns the SockJS codec when sockjs is set, the raw codec otherwise.
func NewCodec(sockjs bool) Codec {
	if sockjs {
		return SockJS{}
	}
	return Raw{}
}

// Raw passes frames through untouched.
type Raw struct{}

func (Raw) Decode(msg []byte) ([]string, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	return []string{string(msg)}, nil
}

func (Raw) Encode(line string) ([]byte, error) {
	return []byte(line), nil
}

// SockJS handles the SockJS websocket framing: "a" carries a JSON array of
// frames, "o" and "h" are open/heartbeat control frames, "c" closes.
type SockJS struct{}

func (SockJS) Decode(msg []byte) ([]string, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	switch msg[0] {
	case 'o', 'h':
		return nil, nil
	case 'c':
		return nil, ErrRemoteClosed
	case 'a':
		var frames []string
		if err := json.Unmarshal(msg[1:], &frames); err != nil {
			return nil, fmt.Errorf("decode sockjs array: %w", err)
		}
		return frames, nil
	default:
		return nil, nil
	}
}

func (SockJS) Encode(line string) ([]byte, error) {
	data, err := json.Marshal([]string{line})
	if err != nil {
		return nil, fmt.Errorf("encode sockjs array: %w", err)
	}
	return data, nil
}
