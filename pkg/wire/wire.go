// Package wire defines the JSON frames exchanged on a per-note realtime
// channel. Presence frames carry a type field and the server's roster
// snapshot; content frames carry only the full body markup and the sender
// id, with no type field at all.
package wire

import "encoding/json"

// Roster maps participant id to display name. The server sends it under
// the current_user key on every presence broadcast, and clients replace
// their local copy wholesale with it.
type Roster map[int64]string

// Participant identifies one connected user of a note channel.
type Participant struct {
	ID   int64
	Name string
}

// Kind classifies an inbound frame.
type Kind int

const (
	KindContent Kind = iota
	KindJoin
	KindLeft
)

const (
	typeJoin = "join"
	typeLeft = "left"

	// an older broker variant spelled departure broadcasts "leaved"
	typeLeaved = "leaved"
)

// Frame is the single message shape carried on the channel.
type Frame struct {
	Type     string `json:"type,omitempty"`
	Username string `json:"username,omitempty"`
	SenderID int64  `json:"senderId"`
	Roster   Roster `json:"current_user,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Kind reports what the frame announces. A frame without a type field is
// a content broadcast.
func (f Frame) Kind() Kind {
	switch f.Type {
	case typeJoin:
		return KindJoin
	case typeLeft, typeLeaved:
		return KindLeft
	default:
		return KindContent
	}
}

// Sender returns the originating participant as reported by the frame.
func (f Frame) Sender() Participant {
	return Participant{ID: f.SenderID, Name: f.Username}
}

// Join builds the announcement a client sends immediately after
// connecting.
func Join(self Participant) Frame {
	return Frame{Type: typeJoin, Username: self.Name, SenderID: self.ID}
}

// Left builds the departure announcement sent before closing.
func Left(self Participant) Frame {
	return Frame{Type: typeLeft, Username: self.Name, SenderID: self.ID}
}

// Content builds a full-body broadcast frame.
func Content(senderID int64, content string) Frame {
	return Frame{SenderID: senderID, Content: content}
}

// WithRoster returns a copy of the frame carrying the given snapshot,
// used by the broker when it augments presence broadcasts.
func (f Frame) WithRoster(r Roster) Frame {
	f.Roster = r
	return f
}

// Decode parses a single frame. It does not validate beyond JSON
// well-formedness; the consumer decides which fields a given kind
// requires.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Encode serializes a frame for transmission.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}
