package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/inkwell-notes/inkwell/pkg/wire"
)

// State is the lifecycle of the realtime connection. It is owned by the
// Transport; everything else only reads it.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "disconnected"
	}
}

// ErrAlreadyOpen is returned by Open when the transport already has a
// live or in-flight connection. It signals a programming error in the
// caller; a second socket is never created.
var ErrAlreadyOpen = errors.New("session: transport already open")

// Dispatcher receives the typed events decoded from one connection.
// Exactly one method fires per inbound frame, in arrival order, from a
// single goroutine.
type Dispatcher interface {
	HandleOpen()
	HandleContent(senderID int64, content string)
	HandleJoin(roster wire.Roster, sender wire.Participant)
	HandleLeave(roster wire.Roster, sender wire.Participant)
	HandleError(err error)
	HandleClose()
}

// Transport owns at most one live websocket connection to a note
// channel. It never reconnects on its own: after an error the owner may
// call Open again.
type Transport struct {
	base *url.URL
	log  *slog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
}

// NewTransport builds a transport against the websocket collaborator's
// base URL (e.g. "ws://localhost:8080").
func NewTransport(wsBaseURL string, log *slog.Logger) (*Transport, error) {
	u, err := url.Parse(wsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ws base url: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transport{base: u, log: log}, nil
}

// State reports the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Open dials the channel for the given note, announces self with a join
// frame, and starts delivering inbound frames to the dispatcher. The
// returned Handle is the only reference to the connection; all sends and
// the final close go through it.
func (t *Transport) Open(noteID int64, self wire.Participant, d Dispatcher) (*Handle, error) {
	t.mu.Lock()
	if t.state == Connecting || t.state == Connected {
		t.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	t.state = Connecting
	t.mu.Unlock()

	u := *t.base
	u.Path = path.Join(u.Path, "ws", "notes", strconv.FormatInt(noteID, 10)) + "/"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.setState(Disconnected)
		return nil, fmt.Errorf("failed to dial %s: %w", u.String(), err)
	}
	if err := conn.WriteJSON(wire.Join(self)); err != nil {
		_ = conn.Close()
		t.setState(Disconnected)
		return nil, fmt.Errorf("failed to announce join: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.state = Connected
	t.mu.Unlock()

	h := &Handle{t: t, d: d, self: self}
	d.HandleOpen()
	go h.readLoop(conn)
	return h, nil
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Handle is the caller's reference to one live connection.
type Handle struct {
	t    *Transport
	d    Dispatcher
	self wire.Participant
}

// Send broadcasts a full-body content frame. It is a silent no-op unless
// the connection is Connected: edits made while disconnected are neither
// queued nor retried here, they survive only through the autosave path.
func (h *Handle) Send(content string) {
	t := h.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Connected || t.conn == nil {
		return
	}
	if err := t.conn.WriteJSON(wire.Content(h.self.ID, content)); err != nil {
		t.log.Error("failed to write content frame", "err", err)
	}
}

// Close sends a departure frame if still connected, then tears the
// connection down. Safe to call after the connection has already
// dropped.
func (h *Handle) Close() error {
	t := h.t
	t.mu.Lock()
	conn := t.conn
	wasConnected := t.state == Connected
	t.conn = nil
	t.state = Closing
	t.mu.Unlock()

	if conn == nil {
		t.setState(Disconnected)
		return nil
	}
	if wasConnected {
		if err := conn.WriteJSON(wire.Left(h.self)); err != nil {
			t.log.Error("failed to announce departure", "err", err)
		}
	}
	err := conn.Close()
	t.setState(Disconnected)
	return err
}

func (h *Handle) readLoop(conn *websocket.Conn) {
	t := h.t
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			deliberate := t.state == Closing || t.state == Disconnected
			t.conn = nil
			t.state = Disconnected
			t.mu.Unlock()
			if !deliberate {
				h.d.HandleError(err)
			}
			h.d.HandleClose()
			return
		}

		f, err := wire.Decode(data)
		if err != nil {
			// one bad frame must not kill the session
			t.log.Error("dropping malformed frame", "err", err)
			continue
		}
		switch f.Kind() {
		case wire.KindJoin:
			if f.Roster == nil {
				t.log.Error("dropping join frame without roster snapshot", "sender", f.SenderID)
				continue
			}
			h.d.HandleJoin(f.Roster, f.Sender())
		case wire.KindLeft:
			if f.Roster == nil {
				t.log.Error("dropping left frame without roster snapshot", "sender", f.SenderID)
				continue
			}
			h.d.HandleLeave(f.Roster, f.Sender())
		default:
			if f.SenderID == 0 {
				t.log.Error("dropping content frame without sender id")
				continue
			}
			h.d.HandleContent(f.SenderID, f.Content)
		}
	}
}
