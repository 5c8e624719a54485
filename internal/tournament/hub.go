package tournament

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

var ErrHubClosed = errors.New("tournament hub closed")

// Factory starts a watcher for one tournament.
type Factory func(ctx context.Context, id string) (*Watcher, error)

type HubMsg interface{ isHubMsg() }

type EnsureWatcher struct {
	ID    string
	Reply chan EnsureResult
}

type EnsureResult struct {
	Watcher *Watcher
	Err     error
}

type GetWatcher struct {
	ID    string
	Reply chan *Watcher
}

type ListWatchers struct {
	Reply chan []string
}

type RemoveWatcher struct {
	ID    string
	Reply chan error
}

type ShutdownHub struct {
	Reply chan error
}

// watcherStopped reports a watcher that ended on its own.
type watcherStopped struct {
	ID      string
	Watcher *Watcher
}

func (EnsureWatcher) isHubMsg()  {}
func (GetWatcher) isHubMsg()     {}
func (ListWatchers) isHubMsg()   {}
func (RemoveWatcher) isHubMsg()  {}
func (ShutdownHub) isHubMsg()    {}
func (watcherStopped) isHubMsg() {}

// Hub keeps at most one watcher per tournament.
type Hub struct {
	inbox    chan HubMsg
	watchers map[string]*Watcher
	factory  Factory
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		watchers: make(map[string]*Watcher),
		factory:  factory,
		log:      log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

// Ensure returns the watcher for id, starting one if needed. A watcher that
// gave up reconnecting is replaced.
func (h *Hub) Ensure(id string) (*Watcher, error) {
	reply := make(chan EnsureResult, 1)
	if !h.post(EnsureWatcher{ID: id, Reply: reply}) {
		return nil, ErrHubClosed
	}
	select {
	case r := <-reply:
		return r.Watcher, r.Err
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}
}

// Get returns nil when id is not watched.
func (h *Hub) Get(id string) *Watcher {
	reply := make(chan *Watcher, 1)
	if !h.post(GetWatcher{ID: id, Reply: reply}) {
		return nil
	}
	select {
	case w := <-reply:
		return w
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) List() []string {
	reply := make(chan []string, 1)
	if !h.post(ListWatchers{Reply: reply}) {
		return nil
	}
	select {
	case ids := <-reply:
		return ids
	case <-h.ctx.Done():
		return nil
	}
}

// Bracket returns the latest bracket for id; ok is false when id is not
// watched. A watched tournament may not have sent a bracket yet.
func (h *Hub) Bracket(id string) (b *protocol.Bracket, ok bool) {
	w := h.Get(id)
	if w == nil {
		return nil, false
	}
	return w.Bracket(), true
}

// Remove stops and forgets the watcher for id.
func (h *Hub) Remove(id string) error {
	reply := make(chan error, 1)
	if !h.post(RemoveWatcher{ID: id, Reply: reply}) {
		return ErrHubClosed
	}
	select {
	case err := <-reply:
		return err
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// Shutdown closes every watcher. Later calls return nil.
func (h *Hub) Shutdown() error {
	reply := make(chan error, 1)
	if !h.post(ShutdownHub{Reply: reply}) {
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-h.ctx.Done():
		// The reply is sent before the hub cancels itself.
		select {
		case err := <-reply:
			return err
		default:
			return nil
		}
	}
}

func (h *Hub) post(m HubMsg) bool {
	select {
	case <-h.ctx.Done():
		return false
	default:
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			for _, w := range h.watchers {
				_ = w.Close()
			}
			clear(h.watchers)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureWatcher:
				if w := h.watchers[msg.ID]; w != nil && !stopped(w) {
					msg.Reply <- EnsureResult{Watcher: w}
					break
				}
				w, err := h.factory(h.ctx, msg.ID)
				if err != nil {
					h.log.Warn("watch failed", zap.String("tournament", msg.ID), zap.Error(err))
					msg.Reply <- EnsureResult{Err: err}
					break
				}
				h.watchers[msg.ID] = w
				go h.reap(msg.ID, w)
				h.log.Info("watching tournament", zap.String("tournament", msg.ID))
				msg.Reply <- EnsureResult{Watcher: w}

			case watcherStopped:
				if h.watchers[msg.ID] == msg.Watcher {
					delete(h.watchers, msg.ID)
					h.log.Info("tournament watcher stopped", zap.String("tournament", msg.ID))
				}

			case GetWatcher:
				msg.Reply <- h.watchers[msg.ID] // may be nil

			case ListWatchers:
				ids := make([]string, 0, len(h.watchers))
				for id := range h.watchers {
					ids = append(ids, id)
				}
				msg.Reply <- ids

			case RemoveWatcher:
				var err error
				if w := h.watchers[msg.ID]; w != nil {
					err = w.Close()
					delete(h.watchers, msg.ID)
				}
				msg.Reply <- err

			case ShutdownHub:
				var err error
				for _, w := range h.watchers {
					err = multierr.Append(err, w.Close())
				}
				clear(h.watchers)
				msg.Reply <- err
				h.cancel()
				return
			}
		}
	}
}

// reap tells the loop when w stops without being asked to.
func (h *Hub) reap(id string, w *Watcher) {
	select {
	case <-w.Done():
		h.post(watcherStopped{ID: id, Watcher: w})
	case <-h.ctx.Done():
	}
}

func stopped(w *Watcher) bool {
	select {
	case <-w.Done():
		return true
	default:
		return false
	}
}
