// Package events implements the fire-and-forget commit-notification
// sink consumed from messaging (spec §6.2): pkg/rdfstore calls
// Publisher.Publish at most once per successful commit and never rolls
// back the commit on a publish failure.
//
// Grounded on the teacher's pkg/server (HTTP handlers broadcasting
// query results as JSON) for the JSON-over-the-wire shape, generalized
// from handler-local response encoding to a standalone commit-event
// sink; the WebSocket fan-out has no teacher analogue and is new code
// in the teacher's plain style, building its JSON with tidwall/sjson.
// The gorilla/websocket connection it writes to is wired in
// cmd/quadstore, and the package tests read events back with
// tidwall/gjson.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/ldpstore/quadstore/internal/logging"
	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

// Kind names the mutation that produced an Event.
type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindSet    Kind = "set"
)

// Event is a single commit notification (spec §6.2:
// "{kind, graph?, triples}").
type Event struct {
	ID      string
	Kind    Kind
	Graph   string // empty for the default graph
	Triples []rdfterm.Triple
}

// JSON renders e as the wire format WebSocketPublisher broadcasts,
// built incrementally with tidwall/sjson rather than a struct tag
// marshal so the triple list can be flattened to plain strings.
func (e Event) JSON() (string, error) {
	js := `{}`
	var err error
	js, err = sjson.Set(js, "id", e.ID)
	if err != nil {
		return "", err
	}
	js, err = sjson.Set(js, "kind", string(e.Kind))
	if err != nil {
		return "", err
	}
	if e.Graph != "" {
		js, err = sjson.Set(js, "graph", e.Graph)
		if err != nil {
			return "", err
		}
	}
	lines := make([]string, len(e.Triples))
	for i, t := range e.Triples {
		lines[i] = t.String()
	}
	js, err = sjson.Set(js, "triples", lines)
	if err != nil {
		return "", err
	}
	return js, nil
}

// Publisher is the sink the store calls into after a successful
// commit. Implementations must not block the caller for long and must
// never return an error that causes the caller to roll back.
type Publisher interface {
	Publish(e Event) error
}

// NoopPublisher discards every event; the default when no messaging
// collaborator is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) error { return nil }

// NewEvent stamps a new Event with a fresh id.
func NewEvent(kind Kind, graph string, triples []rdfterm.Triple) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Graph: graph, Triples: triples}
}

// WebSocketPublisher broadcasts every published event as JSON to every
// currently-registered connection. It is the collaborator wired into
// the `serve` CLI command (debug event tap, not an LDP server).
type WebSocketPublisher struct {
	mu    sync.Mutex
	conns map[*wsConn]struct{}
	log   *logrus.Entry
}

// wsConn is the minimal surface WebSocketPublisher needs from a
// gorilla/websocket connection; kept as an interface so tests can
// substitute a fake without opening a real socket.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
}

// NewWebSocketPublisher returns an empty publisher ready to accept
// connections via Register.
func NewWebSocketPublisher() *WebSocketPublisher {
	return &WebSocketPublisher{
		conns: make(map[*wsConn]struct{}),
		log:   logging.L().WithField("component", "events"),
	}
}

// Register adds conn to the broadcast set, returning an unregister
// func the caller must invoke when the connection closes.
func (p *WebSocketPublisher) Register(conn wsConn) (unregister func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := &conn
	p.conns[key] = struct{}{}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.conns, key)
	}
}

// Publish broadcasts e to every registered connection. A write failure
// on one connection is logged and does not block delivery to the
// others; it never returns a non-nil error, matching the "never roll
// back the commit" contract.
func (p *WebSocketPublisher) Publish(e Event) error {
	payload, err := e.JSON()
	if err != nil {
		p.log.WithError(err).Warn("dropping event: encode failed")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.conns {
		if err := (*key).WriteMessage(1, []byte(payload)); err != nil {
			p.log.WithError(err).Warn("dropping connection: write failed")
			delete(p.conns, key)
		}
	}
	return nil
}
