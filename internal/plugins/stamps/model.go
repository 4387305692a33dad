// Package stamps relays realtime notifications ("stamps") between connected
// websocket clients. A single hub goroutine owns the set of connected
// channels and dispatches every message to all of them, including the
// sender, in the order the hub received the messages.
package stamps

import (
	"bytes"
	"encoding/json"
	"time"
)

// EventSend is the only event the relay understands, in both directions.
const EventSend = "send"

// defaultQueueSize is the number of frames buffered per channel before the
// channel is considered too slow and evicted.
const defaultQueueSize = 256

// Message is an opaque client payload. The relay never inspects it.
type Message json.RawMessage

// Envelope is the wire format of every websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Channel is one connected realtime client. The hub owns the outbound queue
// and is the only party that closes it.
type Channel struct {
	// ID is unique among connected channels. Assigned on registration.
	ID string

	// ConnectedAt is when the channel was created.
	ConnectedAt time.Time

	// RemoteAddr is the client address, for logging only.
	RemoteAddr string

	send chan []byte
}

// NewChannel creates an unregistered channel with the default queue size.
func NewChannel(remoteAddr string) *Channel {
	return newChannel(remoteAddr, defaultQueueSize)
}

func newChannel(remoteAddr string, queueSize int) *Channel {
	return &Channel{
		ConnectedAt: time.Now().UTC(),
		RemoteAddr:  remoteAddr,
		send:        make(chan []byte, queueSize),
	}
}

// Outbound yields encoded frames queued for this channel. It is closed when
// the channel is unregistered.
func (c *Channel) Outbound() <-chan []byte {
	return c.send
}

// encodeFrame wraps msg in a send envelope without re-encoding it, so the
// payload reaches every client byte for byte.
func encodeFrame(msg Message) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"event":"` + EventSend + `"`)
	if len(msg) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(msg)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}
