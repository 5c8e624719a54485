package tournament

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/channel"
	"github.com/DoyleJ11/pong-client/internal/protocol"
)

// BracketView displays the latest bracket of a tournament.
type BracketView interface {
	ShowBracket(id string, b protocol.Bracket)
}

// Watcher follows one tournament's bracket channel. It only listens; nothing
// is sent apart from the channel's own keepalive.
type Watcher struct {
	id     string
	url    string
	mgr    *channel.Manager
	view   BracketView
	log    *zap.Logger
	latest atomic.Pointer[protocol.Bracket]
	done   chan struct{}
}

// NewWatcher opens url and starts forwarding bracket updates to view, which
// may be nil.
func NewWatcher(ctx context.Context, id, url string, dialer channel.Dialer, opts channel.Options, view BracketView, log *zap.Logger) (*Watcher, error) {
	log = log.Named("tournament").With(zap.String("tournament", id))
	w := &Watcher{
		id:   id,
		url:  url,
		mgr:  channel.NewManager(ctx, dialer, opts, log),
		view: view,
		log:  log,
		done: make(chan struct{}),
	}
	go w.run()
	if err := w.mgr.Open(url); err != nil {
		w.mgr.Shutdown()
		<-w.done
		return nil, err
	}
	return w, nil
}

func (w *Watcher) ID() string { return w.id }

func (w *Watcher) State() channel.State { return w.mgr.State() }

// Bracket returns the last bracket received, or nil.
func (w *Watcher) Bracket() *protocol.Bracket { return w.latest.Load() }

// Close stops following the tournament. Safe to call more than once.
func (w *Watcher) Close() error {
	err := w.mgr.Close()
	w.mgr.Shutdown()
	<-w.done
	if errors.Is(err, channel.ErrShutdown) {
		return nil
	}
	return err
}

// Done is closed once the watcher has stopped for good, either by Close or
// because reconnecting gave up.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.mgr.Done():
			return
		case n := <-w.mgr.Notices():
			switch n := n.(type) {
			case channel.Received:
				w.handle(n.Data)
			case channel.Connected:
				w.log.Info("following bracket", zap.String("url", n.URL))
			case channel.ReconnectFailed:
				w.log.Error("bracket channel lost", zap.Int("attempts", n.Attempts))
				w.mgr.Shutdown()
				return
			}
		}
	}
}

func (w *Watcher) handle(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		w.log.Warn("dropping undecodable message", zap.Error(err))
		return
	}
	u, ok := ev.(protocol.TournamentUpdate)
	if !ok {
		w.log.Debug("ignoring message", zap.String("kind", string(ev.Kind())))
		return
	}
	if u.TournamentID != "" && string(u.TournamentID) != w.id {
		w.log.Warn("bracket for another tournament", zap.String("got", string(u.TournamentID)))
		return
	}
	b := u.Bracket
	w.latest.Store(&b)
	w.log.Debug("bracket updated", zap.Int("round", b.Round), zap.Int("matches", len(b.Matches)))
	if w.view != nil {
		w.view.ShowBracket(w.id, b)
	}
}
