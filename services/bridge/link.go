package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"clocksynth-go/bus"
)

const (
	outQueueLen      = 32
	replyTimeout     = 5 * time.Second
	defaultPingEvery = 5 * time.Second
)

var errPeerClosed = errors.New("bridge: peer closed link")

// wireMsg is the JSON body of pub/sub/unsub frames. Topic tokens are strings
// or integers; sub and unsub may use the bus wildcards.
type wireMsg struct {
	Topic    []any `json:"topic"`
	Payload  any   `json:"payload,omitempty"`
	Retained bool  `json:"retained,omitempty"`
	ReplyTo  []any `json:"reply_to,omitempty"`
}

// link routes between the bus and one connected peer. Only serve's
// goroutine writes to the stream; everything else queues frames on out.
type link struct {
	conn   *bus.Connection
	rwc    io.ReadWriteCloser
	export []bus.Topic
	ping   time.Duration
	out    chan Frame

	mu   sync.Mutex
	subs map[string]*bus.Subscription
}

func newLink(conn *bus.Connection, rwc io.ReadWriteCloser, cfg Config) *link {
	l := &link{
		conn: conn,
		rwc:  rwc,
		ping: defaultPingEvery,
		out:  make(chan Frame, outQueueLen),
		subs: map[string]*bus.Subscription{},
	}
	if cfg.PingS > 0 {
		l.ping = time.Duration(cfg.PingS) * time.Second
	}
	for _, p := range cfg.Export {
		l.export = append(l.export, bus.ParseTopic(p))
	}
	return l
}

// serve owns the link until ctx ends (nil) or the stream fails.
func (l *link) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer l.dropSubs()

	rd := newFramedReader(l.rwc)
	wr := newFramedWriter(l.rwc)

	errCh := make(chan error, 1)
	go func() { errCh <- l.readLoop(ctx, rd) }()

	for _, pattern := range l.export {
		l.subscribe(ctx, pattern)
	}

	tick := time.NewTicker(l.ping)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best-effort close.
			_ = wr.WriteFrame(Frame{Type: frameClose})
			return nil
		case err := <-errCh:
			return err
		case f := <-l.out:
			if err := wr.WriteFrame(f); err != nil {
				return err
			}
		case <-tick.C:
			if err := wr.WriteFrame(Frame{Type: framePing}); err != nil {
				return err
			}
		}
	}
}

func (l *link) readLoop(ctx context.Context, rd *framedReader) error {
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			return err
		}
		switch f.Type {
		case framePing:
			l.send(ctx, Frame{Type: framePong})
		case framePong:
		case frameClose:
			return errPeerClosed
		case framePub:
			l.handlePub(ctx, f.Payload)
		case frameSub:
			if wm, ok := decodeWire(f.Payload); ok {
				if t, ok := topicFromWire(wm.Topic, true); ok {
					l.subscribe(ctx, t)
				}
			}
		case frameUnsub:
			if wm, ok := decodeWire(f.Payload); ok {
				if t, ok := topicFromWire(wm.Topic, true); ok {
					l.unsubscribe(t)
				}
			}
		default:
			// Unknown frame types are ignored.
		}
	}
}

// handlePub publishes a peer message locally. A reply topic is watched for
// one answer, which is sent back to the peer.
func (l *link) handlePub(ctx context.Context, p []byte) {
	wm, ok := decodeWire(p)
	if !ok {
		return
	}
	topic, ok := topicFromWire(wm.Topic, false)
	if !ok || len(topic) == 0 {
		println("Warn: bridge dropped pub with bad topic")
		return
	}
	for _, e := range l.export {
		if bus.Match(e, topic) {
			println("Warn: bridge dropped peer pub to exported topic", topic.String())
			return
		}
	}
	msg := l.conn.NewMessage(topic, wm.Payload, wm.Retained)
	if len(wm.ReplyTo) > 0 {
		rt, ok := topicFromWire(wm.ReplyTo, false)
		if !ok {
			println("Warn: bridge dropped pub with bad reply_to")
			return
		}
		msg.ReplyTo = rt
		sub := l.conn.Subscribe(rt)
		go l.awaitReply(ctx, sub)
	}
	l.conn.Publish(msg)
}

func (l *link) awaitReply(ctx context.Context, sub *bus.Subscription) {
	defer l.conn.Unsubscribe(sub)
	t := time.NewTimer(replyTimeout)
	defer t.Stop()
	select {
	case m, ok := <-sub.Channel():
		if ok {
			l.sendMsg(ctx, m)
		}
	case <-t.C:
	case <-ctx.Done():
	}
}

func (l *link) subscribe(ctx context.Context, pattern bus.Topic) {
	key := pattern.String()
	l.mu.Lock()
	if _, dup := l.subs[key]; dup {
		l.mu.Unlock()
		return
	}
	sub := l.conn.Subscribe(pattern)
	l.subs[key] = sub
	l.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				l.sendMsg(ctx, m)
			}
		}
	}()
}

func (l *link) unsubscribe(pattern bus.Topic) {
	key := pattern.String()
	l.mu.Lock()
	sub := l.subs[key]
	delete(l.subs, key)
	l.mu.Unlock()
	if sub != nil {
		l.conn.Unsubscribe(sub)
	}
}

func (l *link) dropSubs() {
	l.mu.Lock()
	subs := l.subs
	l.subs = map[string]*bus.Subscription{}
	l.mu.Unlock()
	for _, sub := range subs {
		l.conn.Unsubscribe(sub)
	}
}

func (l *link) sendMsg(ctx context.Context, m *bus.Message) {
	b, err := json.Marshal(wireMsg{
		Topic:    []any(m.Topic),
		Payload:  m.Payload,
		Retained: m.Retained,
		ReplyTo:  []any(m.ReplyTo),
	})
	if err != nil {
		println("Warn: bridge cannot encode", m.Topic.String()+":", err.Error())
		return
	}
	if len(b) > maxFramePayload {
		println("Warn: bridge message too large for", m.Topic.String())
		return
	}
	l.send(ctx, Frame{Type: framePub, Payload: b})
}

func (l *link) send(ctx context.Context, f Frame) {
	select {
	case l.out <- f:
	case <-ctx.Done():
	}
}

func decodeWire(p []byte) (wireMsg, bool) {
	var wm wireMsg
	if err := json.Unmarshal(p, &wm); err != nil {
		println("Warn: bridge bad frame body:", err.Error())
		return wm, false
	}
	return wm, true
}

// topicFromWire converts JSON tokens; whole numbers become int so they match
// topics built in code.
func topicFromWire(tokens []any, allowWild bool) (bus.Topic, bool) {
	t := make(bus.Topic, 0, len(tokens))
	for _, tok := range tokens {
		switch v := tok.(type) {
		case string:
			if !allowWild && (v == "+" || v == "#") {
				return nil, false
			}
			t = append(t, v)
		case float64:
			if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
				return nil, false
			}
			t = append(t, int(v))
		default:
			return nil, false
		}
	}
	return t, true
}
