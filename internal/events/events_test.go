package events

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ldpstore/quadstore/pkg/rdfterm"
)

func TestNoopPublisherDiscards(t *testing.T) {
	var p NoopPublisher
	if err := p.Publish(NewEvent(KindAdd, "", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	e := NewEvent(KindAdd, "http://example.org/g1", []rdfterm.Triple{
		rdfterm.NewTriple(rdfterm.NewIRI("http://example.org/a"), rdfterm.NewIRI("http://example.org/b"), rdfterm.NewIRI("http://example.org/c")),
	})
	js, err := e.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if gjson.Get(js, "kind").String() != "add" {
		t.Fatalf("kind = %q", gjson.Get(js, "kind").String())
	}
	if gjson.Get(js, "graph").String() != "http://example.org/g1" {
		t.Fatalf("graph = %q", gjson.Get(js, "graph").String())
	}
	if len(gjson.Get(js, "triples").Array()) != 1 {
		t.Fatalf("triples array len = %d, want 1", len(gjson.Get(js, "triples").Array()))
	}
	if e.ID == "" {
		t.Fatal("NewEvent left ID empty")
	}
}

type fakeConn struct {
	written []string
	failing bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.failing {
		return errors.New("write failed")
	}
	c.written = append(c.written, string(data))
	return nil
}

func TestWebSocketPublisherBroadcasts(t *testing.T) {
	p := NewWebSocketPublisher()
	conn := &fakeConn{}
	unregister := p.Register(conn)
	defer unregister()

	if err := p.Publish(NewEvent(KindAdd, "", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(conn.written) != 1 {
		t.Fatalf("connection received %d messages, want 1", len(conn.written))
	}
	if !strings.Contains(conn.written[0], `"kind":"add"`) {
		t.Fatalf("broadcast payload = %q", conn.written[0])
	}
}

func TestWebSocketPublisherDropsFailingConnection(t *testing.T) {
	p := NewWebSocketPublisher()
	conn := &fakeConn{failing: true}
	p.Register(conn)

	if err := p.Publish(NewEvent(KindAdd, "", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Publish(NewEvent(KindAdd, "", nil)); err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if len(p.conns) != 0 {
		t.Fatalf("failing connection still registered: %d connections, want 0", len(p.conns))
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	p := NewWebSocketPublisher()
	conn := &fakeConn{}
	unregister := p.Register(conn)
	unregister()

	if err := p.Publish(NewEvent(KindAdd, "", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(conn.written) != 0 {
		t.Fatalf("unregistered connection received %d messages, want 0", len(conn.written))
	}
}
