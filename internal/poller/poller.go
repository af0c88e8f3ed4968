// Package poller converges the in-memory room with the store. One
// reconcile step serves both triggers: the periodic tick and a store
// change notification. The step is idempotent, so redundant or
// overlapping triggers are harmless.
package poller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/npezzotti/pr-messenger/internal/session"
	"github.com/npezzotti/pr-messenger/internal/store"
	"github.com/npezzotti/pr-messenger/internal/types"
)

const DefaultInterval = time.Second

type Poller struct {
	store    store.RoomStore
	session  *session.Session
	log      *log.Logger
	interval time.Duration
	// OnUpdate is invoked with the fresh room snapshot whenever a
	// reconcile replaced local state. Used to trigger a re-render.
	OnUpdate func(room types.Room)

	stop chan struct{}
	done chan struct{}
}

func New(s store.RoomStore, sess *session.Session, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    s,
		session:  sess,
		log:      logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, reconciling on every tick and on every store change
// notification, until Stop is called.
func (p *Poller) Run() {
	defer close(p.done)

	// A nil channel blocks forever, which drops the event path for
	// stores that cannot signal changes.
	var changes <-chan struct{}
	if cn, ok := p.store.(store.ChangeNotifier); ok {
		changes = cn.Changes()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Reconcile()
		case <-changes:
			p.Reconcile()
		case <-p.stop:
			return
		}
	}
}

func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

// Reconcile re-reads the active room from the store and replaces the
// in-memory copy when the serialized forms differ. Reports whether
// local state changed.
func (p *Poller) Reconcile() bool {
	current, ok := p.session.CurrentRoom()
	if !ok {
		return false
	}

	updated, found, err := p.store.Room(current.Code)
	if err != nil {
		p.log.Println("reconcile:", err)
		return false
	}
	if !found {
		return false
	}

	if sameSerialized(current, updated) {
		return false
	}

	p.session.ApplyRemote(updated)
	if p.OnUpdate != nil {
		p.OnUpdate(updated)
	}
	return true
}

func sameSerialized(a, b types.Room) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
