// Package session implements one collaborative-editing session for one
// note from the point of view of a single participant: a websocket
// transport bound to the note's channel, a roster of connected users, a
// single-owner document snapshot reconciling local and remote edits, and
// a debounced autosave path to the persistence backend.
//
// Concurrent edits are resolved by full-document overwrite: the last
// content frame applied wins. There is no merge and no conflict
// detection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkwell-notes/inkwell/pkg/wire"
)

// Snapshot is the editable surface of one note. Exactly one copy exists
// per open session, owned by the Session; every mutation goes through a
// Session entry point.
type Snapshot struct {
	Title    string
	Category string
	Body     string
}

// Persister writes a snapshot to the persistence backend. Implementations
// live outside this package (see pkg/note).
type Persister interface {
	Persist(ctx context.Context, title, content, category string) error
}

// Notifier receives the user-facing signals a session raises. Signals
// caused by the local participant's own join/leave are suppressed before
// they reach the notifier; data effects still apply.
type Notifier interface {
	ParticipantJoined(name string)
	ParticipantLeft(name string)
	SaveFailed(err error)
	Disconnected(err error)
}

type nopNotifier struct{}

func (nopNotifier) ParticipantJoined(string) {}
func (nopNotifier) ParticipantLeft(string)   {}
func (nopNotifier) SaveFailed(error)         {}
func (nopNotifier) Disconnected(error)       {}

// Config carries everything a session needs.
type Config struct {
	WSBaseURL string
	NoteID    int64
	Self      wire.Participant

	Persister Persister
	Notifier  Notifier
	Logger    *slog.Logger

	// SaveDelay overrides the autosave debounce window, mainly for
	// tests. Zero means DefaultSaveDelay.
	SaveDelay time.Duration
}

// Session is the single authority over the in-memory snapshot. It is the
// transport's dispatcher, the owner of the autosave timer, and the only
// writer of the roster.
type Session struct {
	cfg    Config
	log    *slog.Logger
	notify Notifier

	transport *Transport
	roster    *Tracker
	saver     *autosave

	mu     sync.Mutex
	handle *Handle
	snap   Snapshot
	loaded bool
	dirty  bool
	closed bool
}

// New builds a session. Connect must be called separately; a session is
// usable offline, in which case edits reach the backend only through
// autosave.
func New(cfg Config) (*Session, error) {
	if cfg.Self.ID == 0 {
		return nil, fmt.Errorf("session requires a participant id")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	notify := cfg.Notifier
	if notify == nil {
		notify = nopNotifier{}
	}
	transport, err := NewTransport(cfg.WSBaseURL, log)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:       cfg,
		log:       log.With("note", cfg.NoteID, "self", cfg.Self.ID),
		notify:    notify,
		transport: transport,
		roster:    NewTracker(),
	}
	s.saver = newAutosave(cfg.SaveDelay, s.fireAutosave)
	return s, nil
}

// Load seeds the snapshot from the initial fetch. Until Load has been
// called the session is non-interactive: local edits are ignored.
func (s *Session) Load(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.loaded = true
	s.mu.Unlock()
}

// Connect opens the realtime channel. Calling it while a connection is
// live or in flight returns ErrAlreadyOpen without touching the existing
// socket. After a drop the owner may call Connect again.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	s.mu.Unlock()
	h, err := s.transport.Open(s.cfg.NoteID, s.cfg.Self, s)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	return nil
}

// ConnectionState reports the transport's state for status display.
func (s *Session) ConnectionState() State {
	return s.transport.State()
}

// Snapshot returns a copy of the current document snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Dirty reports whether local edits have not yet been persisted.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Roster lists the currently connected participants.
func (s *Session) Roster() []wire.Participant {
	return s.roster.List()
}

// RosterCount reports the number of connected participants.
func (s *Session) RosterCount() int {
	return s.roster.Count()
}

// SetTitle applies a local title edit and arms autosave. Titles are not
// broadcast; they reach other participants through persistence.
func (s *Session) SetTitle(title string) {
	s.localEdit(func(snap *Snapshot) { snap.Title = title }, false)
}

// SetCategory applies a local category edit and arms autosave.
func (s *Session) SetCategory(category string) {
	s.localEdit(func(snap *Snapshot) { snap.Category = category }, false)
}

// SetBody applies a local body edit, broadcasts the full body when
// connected, and arms autosave.
func (s *Session) SetBody(markup string) {
	s.localEdit(func(snap *Snapshot) { snap.Body = markup }, true)
}

func (s *Session) localEdit(mutate func(*Snapshot), broadcast bool) {
	s.mu.Lock()
	if !s.loaded || s.closed {
		s.mu.Unlock()
		s.log.Debug("ignoring edit outside the interactive window")
		return
	}
	mutate(&s.snap)
	s.dirty = true
	body := s.snap.Body
	handle := s.handle
	s.mu.Unlock()

	if broadcast && handle != nil {
		handle.Send(body)
	}
	s.saver.Arm()
}

// Flush persists the current snapshot immediately, bypassing the
// debounce window. The pending timer, if any, is cancelled first.
func (s *Session) Flush(ctx context.Context) error {
	s.saver.Stop()
	return s.persist(ctx)
}

// Close tears the session down: flush any pending autosave, announce
// departure and close the socket, and make sure no timer can fire
// afterwards. Safe to call once per session.
func (s *Session) Close(ctx context.Context) error {
	pending := s.saver.Stop()

	var persistErr error
	if pending {
		persistErr = s.persist(ctx)
	}

	s.mu.Lock()
	s.closed = true
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()

	var closeErr error
	if handle != nil {
		closeErr = handle.Close()
	}
	return errors.Join(persistErr, closeErr)
}

func (s *Session) fireAutosave() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if err := s.persist(context.Background()); err != nil {
		s.log.Error("autosave failed", "err", err)
	}
}

// persist reads the snapshot at call time, so edits landing between arm
// and expiry are included. Failures are surfaced and never retried; the
// next edit or an explicit flush is the recovery path.
func (s *Session) persist(ctx context.Context) error {
	if s.cfg.Persister == nil {
		return nil
	}
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()

	if err := s.cfg.Persister.Persist(ctx, snap.Title, snap.Body, snap.Category); err != nil {
		s.notify.SaveFailed(err)
		return fmt.Errorf("failed to persist note: %w", err)
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// HandleOpen implements Dispatcher.
func (s *Session) HandleOpen() {
	s.log.Info("realtime channel connected")
}

// HandleContent implements Dispatcher. Frames echoing the local
// participant's own broadcasts are discarded; anything else replaces the
// body wholesale.
func (s *Session) HandleContent(senderID int64, content string) {
	if senderID == s.cfg.Self.ID {
		return
	}
	s.mu.Lock()
	s.snap.Body = content
	s.mu.Unlock()
}

// HandleJoin implements Dispatcher. The roster is always replaced from
// the snapshot; the notification is suppressed when the join was our
// own.
func (s *Session) HandleJoin(roster wire.Roster, sender wire.Participant) {
	s.roster.ReplaceFrom(roster)
	if sender.ID == s.cfg.Self.ID {
		return
	}
	s.notify.ParticipantJoined(sender.Name)
}

// HandleLeave implements Dispatcher.
func (s *Session) HandleLeave(roster wire.Roster, sender wire.Participant) {
	s.roster.ReplaceFrom(roster)
	if sender.ID == s.cfg.Self.ID {
		return
	}
	s.notify.ParticipantLeft(sender.Name)
}

// HandleError implements Dispatcher.
func (s *Session) HandleError(err error) {
	s.log.Error("realtime channel failed", "err", err)
	s.notify.Disconnected(err)
}

// HandleClose implements Dispatcher.
func (s *Session) HandleClose() {
	s.log.Info("realtime channel closed")
}
