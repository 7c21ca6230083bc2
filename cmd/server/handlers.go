package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/inkwell-notes/inkwell/pkg/note"
)

type server struct {
	store  *store
	broker *broker
	log    *slog.Logger
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/notes/").HandlerFunc(s.listNotes)
	r.Methods(http.MethodPost).Path("/notes/").HandlerFunc(s.createNote)
	r.Methods(http.MethodGet).Path("/notes/share/{token}/").HandlerFunc(s.getShared)
	r.Methods(http.MethodPut).Path("/notes/share/{token}/").HandlerFunc(s.updateShared)
	r.Methods(http.MethodGet).Path("/notes/{id:[0-9]+}/").HandlerFunc(s.getNote)
	r.Methods(http.MethodPut).Path("/notes/{id:[0-9]+}/").HandlerFunc(s.updateNote)
	r.Methods(http.MethodDelete).Path("/notes/{id:[0-9]+}/").HandlerFunc(s.deleteNote)
	r.Methods(http.MethodPut).Path("/notes/{id:[0-9]+}/share/").HandlerFunc(s.setShared)
	r.Methods(http.MethodGet).Path("/ws/notes/{id:[0-9]+}/").HandlerFunc(s.serveWS)
	return r
}

// identity reads the caller set by the authentication collaborator in
// front of this service.
func identity(r *http.Request) (int64, string, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, r.Header.Get("X-User-Name"), true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func noteID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *server) listNotes(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	notes, err := s.store.listByOwner(r.Context(), owner)
	if err != nil {
		s.log.Error("failed to list notes", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *server) createNote(w http.ResponseWriter, r *http.Request) {
	owner, ownerName, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.Title) > maxTitleLen {
		writeMessage(w, http.StatusBadRequest, "cannot be created")
		return
	}
	n, err := s.store.create(r.Context(), owner, ownerName, in.Title, in.Content)
	if err != nil {
		s.log.Error("failed to create note", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) getNote(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := identity(r); !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	n, err := s.store.get(r.Context(), noteID(r))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) updateNote(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var u note.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || len(u.Title) > maxTitleLen {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	n, err := s.store.update(r.Context(), noteID(r), owner, u)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) deleteNote(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := s.store.delete(r.Context(), noteID(r), owner); err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot be deleted")
		return
	}
	writeMessage(w, http.StatusOK, "deleted successfully")
}

func (s *server) setShared(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var in struct {
		IsShared bool `json:"is_shared"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	n, err := s.store.setShared(r.Context(), noteID(r), owner, in.IsShared)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) getShared(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.getByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) updateShared(w http.ResponseWriter, r *http.Request) {
	var u note.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || len(u.Title) > maxTitleLen {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	n, err := s.store.updateByToken(r.Context(), mux.Vars(r)["token"], u)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot be edited")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade", "err", err)
		return
	}
	h := s.broker.hubFor(noteID(r))
	p := &peer{conn: conn, send: make(chan []byte, 256)}
	h.register <- p
	go p.writePump()
	go p.readPump(h)
}
