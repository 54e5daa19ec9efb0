// Package sse implements a Server-Sent Events broker for project and document changes.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// IndexUpdated is broadcast, throttled, after any change so that clients can
// refresh their project and document listings in one request.
const IndexUpdated = "index.updated"

const (
	// historySize bounds the events kept for Last-Event-ID replay. It matches
	// the subscriber buffer so a full replay never drops.
	historySize = 64
	bufferSize  = historySize

	defaultIndexThrottle = 2 * time.Second
	defaultKeepAlive     = 15 * time.Second
)

var keepAliveFrame = []byte(": ping\n\n")

// Event is one message on the stream. ID is assigned by the broker.
type Event struct {
	ID   uint64      `json:"-"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (e Event) frame() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)
	return buf.Bytes(), nil
}

// ChangeData is the payload of project and document change events.
type ChangeData struct {
	Project string `json:"project"`
	File    string `json:"file,omitempty"`
}

// Filter selects what a subscriber receives.
type Filter struct {
	// Project limits change events to one project. Events without a
	// project, such as index.updated, are always delivered.
	Project string
	// After replays retained events with a larger ID on subscription.
	After uint64
}

func (f Filter) match(e Event) bool {
	if f.Project == "" {
		return true
	}
	cd, ok := e.Data.(ChangeData)
	return !ok || cd.Project == f.Project
}

type subscriber struct {
	out    chan []byte
	filter Filter
}

// offer never blocks; a slow subscriber misses messages.
func (s *subscriber) offer(msg []byte) {
	select {
	case s.out <- msg:
	default:
	}
}

type entry struct {
	event Event
	frame []byte
}

// state is owned by the broker loop.
type state struct {
	subs      map[chan []byte]*subscriber
	history   []entry
	nextID    uint64
	lastIndex time.Time
}

func (st *state) broadcast(e Event) {
	st.nextID++
	e.ID = st.nextID
	raw, err := e.frame()
	if err != nil {
		return
	}
	if len(st.history) == historySize {
		st.history = append(st.history[:0], st.history[1:]...)
	}
	st.history = append(st.history, entry{event: e, frame: raw})

	for _, s := range st.subs {
		if s.filter.match(e) {
			s.offer(raw)
		}
	}
}

// Broker fans events out to SSE clients. A single loop owns all state and
// runs the operations queued by the public methods in order.
type Broker struct {
	indexMin  time.Duration
	keepAlive time.Duration
	clock     clock.Clock

	ops     chan func(*state)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithClock replaces the wall clock used for throttling and keep-alives.
func WithClock(c clock.Clock) Option {
	return func(b *Broker) { b.clock = c }
}

// WithKeepAlive sets the interval of comment pings sent to idle streams.
// Zero disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// NewBroker creates a broker that emits index.updated at most once per indexThrottle.
func NewBroker(indexThrottle time.Duration, opts ...Option) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = defaultIndexThrottle
	}
	b := &Broker{
		indexMin:  indexThrottle,
		keepAlive: defaultKeepAlive,
		clock:     clock.New(),
		ops:       make(chan func(*state), 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	st := &state{subs: make(map[chan []byte]*subscriber)}

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		ticker := b.clock.Ticker(b.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range st.subs {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(st)
		case <-ping:
			for _, s := range st.subs {
				s.offer(keepAliveFrame)
			}
		}
	}
}

// do queues op on the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*state)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and replays the retained events after
// f.After. The returned channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe(f Filter) chan []byte {
	ch := make(chan []byte, bufferSize)
	added := make(chan struct{})
	queued := b.do(func(st *state) {
		s := &subscriber{out: ch, filter: f}
		st.subs[ch] = s
		if f.After > 0 {
			for _, e := range st.history {
				if e.event.ID > f.After && f.match(e.event) {
					s.offer(e.frame)
				}
			}
		}
		close(added)
	})
	if !queued {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.stopped:
		select {
		case <-added:
			// Registered before the loop stopped, which closed ch.
		default:
			close(ch)
		}
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(st *state) {
		if _, ok := st.subs[ch]; ok {
			delete(st.subs, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(st *state) { n <- len(st.subs) }) {
		return 0
	}
	select {
	case v := <-n:
		return v
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	b.do(func(st *state) { st.broadcast(event) })
}

// PublishChange broadcasts a change event of the given kind (for example
// "document.added") followed by a throttled index.updated.
func (b *Broker) PublishChange(kind, project, file string) {
	b.do(func(st *state) {
		st.broadcast(Event{Type: kind, Data: ChangeData{Project: project, File: file}})

		now := b.clock.Now()
		if now.Sub(st.lastIndex) >= b.indexMin {
			st.lastIndex = now
			st.broadcast(Event{Type: IndexUpdated, Data: map[string]string{}})
		}
	})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// project query parameter limits the stream to one project; a Last-Event-ID
// header resumes after the given event.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	f := Filter{Project: r.URL.Query().Get("project")}
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		id, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			http.Error(w, "invalid Last-Event-ID", http.StatusBadRequest)
			return
		}
		f.After = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(f)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
