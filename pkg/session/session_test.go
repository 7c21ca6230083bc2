package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inkwell-notes/inkwell/pkg/wire"
)

type persistCall struct {
	title, content, category string
}

type fakePersister struct {
	mu    sync.Mutex
	calls []persistCall
	err   error
	ch    chan persistCall
}

func newFakePersister() *fakePersister {
	return &fakePersister{ch: make(chan persistCall, 16)}
}

func (p *fakePersister) Persist(ctx context.Context, title, content, category string) error {
	call := persistCall{title: title, content: content, category: category}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	p.ch <- call
	return p.err
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePersister) waitCall(t *testing.T) persistCall {
	t.Helper()
	select {
	case c := <-p.ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a persistence call")
		return persistCall{}
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	joined   []string
	left     []string
	saveErrs []error
	lost     []error
}

func (n *fakeNotifier) ParticipantJoined(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joined = append(n.joined, name)
}

func (n *fakeNotifier) ParticipantLeft(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.left = append(n.left, name)
}

func (n *fakeNotifier) SaveFailed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saveErrs = append(n.saveErrs, err)
}

func (n *fakeNotifier) Disconnected(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lost = append(n.lost, err)
}

func (n *fakeNotifier) joinedNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.joined...)
}

func (n *fakeNotifier) leftNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.left...)
}

func (n *fakeNotifier) saveFailures() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.saveErrs...)
}

func newTestSession(t *testing.T, wsBase string, p Persister, n Notifier, delay time.Duration) *Session {
	t.Helper()
	if wsBase == "" {
		wsBase = "ws://localhost:1" // never dialled in offline tests
	}
	s, err := New(Config{
		WSBaseURL: wsBase,
		NoteID:    42,
		Self:      testSelf,
		Persister: p,
		Notifier:  n,
		SaveDelay: delay,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestEchoSuppression(t *testing.T) {
	s := newTestSession(t, "", nil, nil, 0)
	s.Load(Snapshot{Title: "plan", Category: "work", Body: "<p>orig</p>"})

	// our own broadcast coming back must not touch the snapshot
	s.HandleContent(testSelf.ID, "<p>echo</p>")
	if got := s.Snapshot().Body; got != "<p>orig</p>" {
		t.Fatalf("body after echo = %q, want unchanged", got)
	}

	// a remote edit replaces the body wholesale
	s.HandleContent(9, "<p>X</p>")
	if got := s.Snapshot().Body; got != "<p>X</p>" {
		t.Fatalf("body after remote edit = %q, want <p>X</p>", got)
	}
}

func TestLastWriterWins(t *testing.T) {
	s := newTestSession(t, "", nil, nil, 0)
	s.Load(Snapshot{Body: "<p>orig</p>"})

	s.HandleContent(9, "<p>from Bo</p>")
	s.HandleContent(12, "<p>from Cy</p>")
	if got := s.Snapshot().Body; got != "<p>from Cy</p>" {
		t.Fatalf("body = %q, want the last applied edit", got)
	}
}

func TestSelfJoinSuppressedButRosterApplied(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(t, "", nil, n, 0)
	s.Load(Snapshot{})

	s.HandleJoin(wire.Roster{7: "Ana"}, testSelf)
	if got := s.RosterCount(); got != 1 {
		t.Fatalf("RosterCount() = %d, want 1", got)
	}
	if got := n.joinedNames(); len(got) != 0 {
		t.Fatalf("self-join raised a notification: %v", got)
	}

	s.HandleJoin(wire.Roster{7: "Ana", 9: "Bo"}, wire.Participant{ID: 9, Name: "Bo"})
	if got := s.RosterCount(); got != 2 {
		t.Fatalf("RosterCount() = %d, want 2", got)
	}
	if got := n.joinedNames(); len(got) != 1 || got[0] != "Bo" {
		t.Fatalf("joined notifications = %v, want [Bo]", got)
	}

	s.HandleLeave(wire.Roster{7: "Ana"}, wire.Participant{ID: 9, Name: "Bo"})
	if got := s.RosterCount(); got != 1 {
		t.Fatalf("RosterCount() = %d, want 1", got)
	}
	if got := n.leftNames(); len(got) != 1 || got[0] != "Bo" {
		t.Fatalf("left notifications = %v, want [Bo]", got)
	}
}

func TestOfflineEditStillAutosaves(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(t, "", p, nil, 20*time.Millisecond)
	s.Load(Snapshot{Title: "plan", Category: "work", Body: "<p>orig</p>"})

	// never connected: the broadcast is skipped, the save path is not
	s.SetBody("<p>offline</p>")

	call := p.waitCall(t)
	if call.content != "<p>offline</p>" || call.title != "plan" || call.category != "work" {
		t.Fatalf("persisted %+v", call)
	}
	if s.Dirty() {
		t.Fatalf("session still dirty after a successful save")
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(t, "", p, nil, 60*time.Millisecond)
	s.Load(Snapshot{})

	s.SetBody("<p>1</p>")
	s.SetTitle("draft")
	s.SetBody("<p>2</p>")
	s.SetCategory("home")
	s.SetBody("<p>3</p>")

	call := p.waitCall(t)
	if call.content != "<p>3</p>" || call.title != "draft" || call.category != "home" {
		t.Fatalf("persisted %+v, want the state after the final edit", call)
	}

	time.Sleep(150 * time.Millisecond)
	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls, want exactly 1", got)
	}
}

func TestEditsBeforeLoadIgnored(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(t, "", p, nil, 10*time.Millisecond)

	s.SetBody("<p>too early</p>")
	time.Sleep(50 * time.Millisecond)
	if got := p.count(); got != 0 {
		t.Fatalf("%d persistence calls before Load, want 0", got)
	}
	if got := s.Snapshot().Body; got != "" {
		t.Fatalf("body = %q, want empty before Load", got)
	}
}

func TestSaveFailureSurfacedNotRetried(t *testing.T) {
	p := newFakePersister()
	p.err = errors.New("backend down")
	n := &fakeNotifier{}
	s := newTestSession(t, "", p, n, 10*time.Millisecond)
	s.Load(Snapshot{})

	s.SetBody("<p>doomed</p>")
	p.waitCall(t)

	time.Sleep(80 * time.Millisecond)
	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls, want 1 (no retry)", got)
	}
	if got := n.saveFailures(); len(got) != 1 {
		t.Fatalf("save failures surfaced = %d, want 1", len(got))
	}
	if !s.Dirty() {
		t.Fatalf("session marked clean after a failed save")
	}
}

func TestConnectBroadcastsLocalBodyEdits(t *testing.T) {
	b := newFakeBroker(t)
	p := newFakePersister()
	s := newTestSession(t, b.wsURL(), p, nil, time.Minute)
	s.Load(Snapshot{})

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if f := b.nextFrame(t); f.Kind() != wire.KindJoin {
		t.Fatalf("expected join first, got %+v", f)
	}

	s.SetBody("<p>live</p>")
	f := b.nextFrame(t)
	if f.Kind() != wire.KindContent || f.Content != "<p>live</p>" || f.SenderID != testSelf.ID {
		t.Fatalf("broadcast frame = %+v", f)
	}

	// title edits are persisted, never broadcast
	s.SetTitle("quiet")
	b.expectNoFrame(t, 100*time.Millisecond)

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestConnectTwiceIsAnError(t *testing.T) {
	b := newFakeBroker(t)
	s := newTestSession(t, b.wsURL(), nil, nil, 0)
	s.Load(Snapshot{})

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close(context.Background())

	if err := s.Connect(); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Connect = %v, want ErrAlreadyOpen", err)
	}
}

func TestCloseFlushesBeforeLeaving(t *testing.T) {
	b := newFakeBroker(t)
	p := newFakePersister()
	s := newTestSession(t, b.wsURL(), p, nil, time.Minute)
	s.Load(Snapshot{Title: "plan", Category: "work"})

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if f := b.nextFrame(t); f.Kind() != wire.KindJoin {
		t.Fatalf("expected join first, got %+v", f)
	}

	s.SetBody("<p>final</p>")
	if f := b.nextFrame(t); f.Kind() != wire.KindContent {
		t.Fatalf("expected content broadcast, got %+v", f)
	}

	// the timer is nowhere near firing: Close must flush it itself
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls after Close, want 1", got)
	}
	call := p.waitCall(t)
	if call.content != "<p>final</p>" {
		t.Fatalf("flushed %+v, want the final body", call)
	}
	if f := b.nextFrame(t); f.Kind() != wire.KindLeft || f.SenderID != testSelf.ID {
		t.Fatalf("expected left after the flush, got %+v", f)
	}

	// the cancelled timer must never fire against the closed session
	time.Sleep(100 * time.Millisecond)
	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls after teardown, want still 1", got)
	}
	if got := s.ConnectionState(); got != Disconnected {
		t.Fatalf("ConnectionState() = %v, want Disconnected", got)
	}
}

func TestCloseWithoutPendingSaveSkipsPersist(t *testing.T) {
	b := newFakeBroker(t)
	p := newFakePersister()
	s := newTestSession(t, b.wsURL(), p, nil, 10*time.Millisecond)
	s.Load(Snapshot{})

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	b.nextFrame(t) // join

	s.SetBody("<p>v1</p>")
	b.nextFrame(t) // content broadcast
	p.waitCall(t)  // debounce fired

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls, want 1 (nothing pending at close)", got)
	}
}

func TestFlushPersistsImmediately(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(t, "", p, nil, time.Minute)
	s.Load(Snapshot{Title: "plan"})

	s.SetBody("<p>now</p>")
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	call := p.waitCall(t)
	if call.content != "<p>now</p>" {
		t.Fatalf("flushed %+v", call)
	}

	time.Sleep(50 * time.Millisecond)
	if got := p.count(); got != 1 {
		t.Fatalf("%d persistence calls, want 1 (timer cancelled by flush)", got)
	}
}
