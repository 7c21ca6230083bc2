package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-notes/inkwell/pkg/wire"
)

// peer is one websocket connection on a note channel. Identity fields
// are filled in by the hub goroutine when the peer's join frame arrives.
type peer struct {
	conn *websocket.Conn
	send chan []byte

	id     int64
	name   string
	joined bool

	// the peer announced its own departure, so the hub must not
	// synthesize one on disconnect
	announced bool
}

type inboundFrame struct {
	data []byte
	from *peer
}

// hub relays frames between the peers of one note. It maintains the
// authoritative roster and stamps every presence broadcast with a
// current_user snapshot. Content frames are relayed to the whole group,
// sender included; clients filter their own echoes.
//
// With redis configured, content frames are published per note channel
// so other server instances relay them too; presence stays
// instance-local. Hubs live for the process lifetime.
type hub struct {
	noteID int64
	log    *slog.Logger

	register   chan *peer
	unregister chan *peer
	inbound    chan inboundFrame

	// touched only by the run goroutine
	peers  map[*peer]bool
	roster wire.Roster

	rdb *redis.Client
}

func newHub(noteID int64, rdb *redis.Client, log *slog.Logger) *hub {
	return &hub{
		noteID:     noteID,
		log:        log.With("note", noteID),
		register:   make(chan *peer),
		unregister: make(chan *peer),
		inbound:    make(chan inboundFrame),
		peers:      map[*peer]bool{},
		roster:     wire.Roster{},
		rdb:        rdb,
	}
}

func (h *hub) channel() string {
	return fmt.Sprintf("note:%d", h.noteID)
}

func (h *hub) run(ctx context.Context) {
	var fanIn <-chan *redis.Message
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(ctx, h.channel())
		defer pubsub.Close()
		fanIn = pubsub.Channel()
	}

	for {
		select {
		case p := <-h.register:
			h.peers[p] = true
			h.log.Info("peer registered", "peers", len(h.peers))

		case p := <-h.unregister:
			if _, ok := h.peers[p]; !ok {
				continue
			}
			delete(h.peers, p)
			close(p.send)
			if p.joined && !p.announced {
				delete(h.roster, p.id)
				h.broadcastPresence(wire.Left(wire.Participant{ID: p.id, Name: p.name}))
			}
			h.log.Info("peer unregistered", "peers", len(h.peers))

		case fm := <-h.inbound:
			h.handleFrame(fm.data, fm.from)

		case m := <-fanIn:
			h.broadcastLocal([]byte(m.Payload))

		case <-ctx.Done():
			return
		}
	}
}

func (h *hub) handleFrame(data []byte, from *peer) {
	f, err := wire.Decode(data)
	if err != nil {
		h.log.Error("dropping malformed frame", "err", err)
		return
	}
	switch f.Kind() {
	case wire.KindJoin:
		from.id = f.SenderID
		from.name = f.Username
		from.joined = true
		h.roster[f.SenderID] = f.Username
		h.broadcastPresence(f)
	case wire.KindLeft:
		from.announced = true
		delete(h.roster, f.SenderID)
		h.broadcastPresence(f)
	default:
		if h.rdb != nil {
			if err := h.rdb.Publish(context.Background(), h.channel(), data).Err(); err != nil {
				h.log.Error("failed to publish frame", "err", err)
			}
			return
		}
		h.broadcastLocal(data)
	}
}

func (h *hub) broadcastPresence(f wire.Frame) {
	snapshot := make(wire.Roster, len(h.roster))
	for id, name := range h.roster {
		snapshot[id] = name
	}
	data, err := wire.Encode(f.WithRoster(snapshot))
	if err != nil {
		h.log.Error("failed to encode presence frame", "err", err)
		return
	}
	h.broadcastLocal(data)
}

func (h *hub) broadcastLocal(data []byte) {
	for p := range h.peers {
		select {
		case p.send <- data:
		default:
			close(p.send)
			delete(h.peers, p)
		}
	}
}

func (p *peer) readPump(h *hub) {
	defer func() {
		h.unregister <- p
		_ = p.conn.Close()
	}()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		h.inbound <- inboundFrame{data: data, from: p}
	}
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for data := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// broker hands out the hub for each note, creating it on first use.
type broker struct {
	ctx context.Context
	log *slog.Logger
	rdb *redis.Client

	mu   sync.Mutex
	hubs map[int64]*hub
}

func newBroker(ctx context.Context, rdb *redis.Client, log *slog.Logger) *broker {
	return &broker{ctx: ctx, log: log, rdb: rdb, hubs: map[int64]*hub{}}
}

func (b *broker) hubFor(noteID int64) *hub {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hubs[noteID]
	if !ok {
		h = newHub(noteID, b.rdb, b.log)
		b.hubs[noteID] = h
		go h.run(b.ctx)
	}
	return h
}
