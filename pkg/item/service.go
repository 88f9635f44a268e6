package item

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is the persistence contract the service serializes access to.
type Store interface {
	Save(ctx context.Context, item Item) (Item, error)
	FindByID(ctx context.Context, id int64) (Item, error)
	FindAll(ctx context.Context) ([]Item, error)
	Update(ctx context.Context, id int64, values Item) error
}

const (
	actionSave   = "save"
	actionUpdate = "update"
	actionFind   = "find"
	actionList   = "list"
)

// queueTimeout bounds how long a call may wait for the loop to pick it up.
const queueTimeout = 2 * time.Second

// command carries one store call to the service goroutine.
type command struct {
	ctx    context.Context
	action string
	item   Item
	id     int64
	reply  chan commandResult
}

// commandResult forwards the stored item, the listing, or an error back to the caller.
type commandResult struct {
	item  Item
	items []Item
	err   error
}

// Service owns a goroutine so saves and updates never interleave with readers.
type Service struct {
	store    Store
	commands chan command
	queries  chan command
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewService starts the background goroutine immediately.
func NewService(store Store) *Service {
	svc := &Service{
		store:    store,
		commands: make(chan command),
		queries:  make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go svc.loop()
	return svc
}

// loop processes commands and queries sequentially so no mutexes are needed.
func (s *Service) loop() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.commands:
			switch cmd.action {
			case actionSave:
				stored, err := s.store.Save(cmd.ctx, cmd.item)
				cmd.reply <- commandResult{item: stored, err: err}
			case actionUpdate:
				err := s.store.Update(cmd.ctx, cmd.id, cmd.item)
				cmd.reply <- commandResult{err: err}
			default:
				cmd.reply <- commandResult{err: fmt.Errorf("unknown item action %q", cmd.action)}
			}
		case q := <-s.queries:
			switch q.action {
			case actionFind:
				found, err := s.store.FindByID(q.ctx, q.id)
				q.reply <- commandResult{item: found, err: err}
			case actionList:
				items, err := s.store.FindAll(q.ctx)
				q.reply <- commandResult{items: items, err: err}
			default:
				q.reply <- commandResult{err: fmt.Errorf("unknown item query %q", q.action)}
			}
		case <-s.quit:
			return
		}
	}
}

// dispatch hands cmd to the loop over ch and waits for the answer. Once the loop
// has accepted cmd the caller always receives the store's own result; the store
// runs under ctx, so a deadline aborts the statement instead of orphaning it.
func (s *Service) dispatch(ctx context.Context, ch chan<- command, cmd command) commandResult {
	cmd.ctx = ctx
	cmd.reply = make(chan commandResult, 1)

	select {
	case ch <- cmd:
	case <-ctx.Done():
		return commandResult{err: ctx.Err()}
	case <-s.quit:
		return commandResult{err: ErrClosed}
	case <-time.After(queueTimeout):
		return commandResult{err: fmt.Errorf("%s: %w", cmd.action, ErrBusy)}
	}

	return <-cmd.reply
}

// Save stores a new item and returns it with its assigned id.
func (s *Service) Save(ctx context.Context, item Item) (Item, error) {
	res := s.dispatch(ctx, s.commands, command{action: actionSave, item: item})
	return res.item, res.err
}

// Update replaces the mutable fields of the item stored under id.
func (s *Service) Update(ctx context.Context, id int64, values Item) error {
	return s.dispatch(ctx, s.commands, command{action: actionUpdate, id: id, item: values}).err
}

// FindByID returns the item stored under id or ErrNotFound.
func (s *Service) FindByID(ctx context.Context, id int64) (Item, error) {
	res := s.dispatch(ctx, s.queries, command{action: actionFind, id: id})
	return res.item, res.err
}

// FindAll lists every item in insertion order.
func (s *Service) FindAll(ctx context.Context) ([]Item, error) {
	res := s.dispatch(ctx, s.queries, command{action: actionList})
	return res.items, res.err
}

// Close stops the background goroutine and waits for it to exit. It is safe to call twice.
func (s *Service) Close() {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
}
