// A headless participant in a note's editing session: fetch the note,
// join its realtime channel, feed stdin lines in as edits, and print
// what everyone else is doing. Useful for poking at a server and for
// soak-testing the broker with several participants.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inkwell-notes/inkwell/pkg/note"
	"github.com/inkwell-notes/inkwell/pkg/session"
	"github.com/inkwell-notes/inkwell/pkg/wire"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mainInner() error {
	apiVar := flag.String("api", envOr("API_URL", "http://localhost:8080"), "the rest collaborator base url")
	wsVar := flag.String("ws", envOr("WS_URL", "ws://localhost:8080"), "the websocket collaborator base url")
	noteVar := flag.Int64("note", 0, "the note id to edit")
	tokenVar := flag.String("token", "", "a share token to edit through instead of a note id")
	idVar := flag.Int64("id", 0, "the participant id")
	nameVar := flag.String("name", "", "the participant display name")
	flag.Parse()

	if *idVar == 0 || *nameVar == "" {
		return fmt.Errorf("both -id and -name are required")
	}
	if (*noteVar == 0) == (*tokenVar == "") {
		return fmt.Errorf("exactly one of -note or -token is required")
	}

	client, err := note.NewClient(*apiVar, *idVar, *nameVar)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetched *note.Note
	var persister session.Persister
	if *tokenVar != "" {
		if fetched, err = client.GetShared(ctx, *tokenVar); err != nil {
			return fmt.Errorf("failed to fetch shared note: %w", err)
		}
		persister = client.SharedSaver(*tokenVar)
	} else {
		if fetched, err = client.Get(ctx, *noteVar); err != nil {
			return fmt.Errorf("failed to fetch note: %w", err)
		}
		persister = client.Saver(*noteVar)
	}
	slog.Info("fetched note", "id", fetched.ID, "title", fetched.Title, "owner", fetched.OwnerName)

	notifier := &consoleNotifier{log: slog.Default(), lost: make(chan struct{}, 1)}
	sess, err := session.New(session.Config{
		WSBaseURL: *wsVar,
		NoteID:    fetched.ID,
		Self:      wire.Participant{ID: *idVar, Name: *nameVar},
		Persister: persister,
		Notifier:  notifier,
	})
	if err != nil {
		return err
	}
	sess.Load(session.Snapshot{Title: fetched.Title, Category: fetched.Category, Body: fetched.Content})

	if err := connectWithRetry(ctx, sess); err != nil {
		return err
	}

	// the transport never reconnects itself; retry policy lives here
	go func() {
		for {
			select {
			case <-notifier.lost:
				if err := connectWithRetry(ctx, sess); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("failed to reconnect", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go readEdits(sess)

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := sess.Close(closeCtx); err != nil {
		slog.Error("failed to close session cleanly", "err", err)
	}
	return nil
}

func connectWithRetry(ctx context.Context, sess *session.Session) error {
	return backoff.Retry(func() error {
		err := sess.Connect()
		if errors.Is(err, session.ErrAlreadyOpen) {
			return nil
		}
		if err != nil {
			slog.Info("connect failed, will retry", "err", err)
		}
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

// readEdits turns stdin lines into edits: "title: x" and "category: x"
// touch those fields, anything else becomes the note body.
func readEdits(sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "title: "):
			sess.SetTitle(strings.TrimPrefix(line, "title: "))
		case strings.HasPrefix(line, "category: "):
			sess.SetCategory(strings.TrimPrefix(line, "category: "))
		default:
			sess.SetBody(fmt.Sprintf("<p>%s</p>", line))
		}
	}
}

type consoleNotifier struct {
	log  *slog.Logger
	lost chan struct{}
}

func (n *consoleNotifier) ParticipantJoined(name string) {
	n.log.Info(fmt.Sprintf("%s joined", name))
}

func (n *consoleNotifier) ParticipantLeft(name string) {
	n.log.Info(fmt.Sprintf("%s left", name))
}

func (n *consoleNotifier) SaveFailed(err error) {
	n.log.Error("save failed", "err", err)
}

func (n *consoleNotifier) Disconnected(err error) {
	select {
	case n.lost <- struct{}{}:
	default:
	}
}
