// Package hub fans sensor updates out to websocket clients using a single
// goroutine that owns the client set.
package hub

import "github.com/gofiber/websocket/v2"

// Kind selects the websocket frame a payload travels in.
type Kind uint8

const (
	// KindJSON payloads are sent as text frames.
	KindJSON Kind = iota
	// KindBinary payloads, such as JPEG color frames, are sent as binary frames.
	KindBinary
)

// frameType maps k to the websocket opcode.
func (k Kind) frameType() int {
	if k == KindBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one payload queued for every client of a hub. Data is shared
// between clients and must not be modified after Broadcast.
type Message struct {
	Kind Kind
	Data []byte
}

// JSON wraps an encoded JSON document.
func JSON(data []byte) Message {
	return Message{Kind: KindJSON, Data: data}
}

// Binary wraps an opaque binary payload.
func Binary(data []byte) Message {
	return Message{Kind: KindBinary, Data: data}
}
