// Package memorydriver implements a database/sql driver over an in-process item
// store so the repository runs unchanged against RAM, SQLite or PostgreSQL.
package memorydriver

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// errClosed is returned for statements issued after the connector was closed.
var errClosed = errors.New("memory store is closed")

// itemRecord keeps the raw persisted representation for the lightweight driver.
type itemRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"item_name"`
	Price     int64     `json:"price"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// snapshot is written to disk after each mutation so the driver survives restarts.
type snapshot struct {
	Items   []itemRecord `json:"items"`
	Counter int64        `json:"counter"`
}

// storeCommand models every operation executed against the in-memory store.
type storeCommand struct {
	action string
	item   itemRecord
	id     int64
	reply  chan storeResult
}

// storeResult transfers either the new identifier, a record list, or an error.
type storeResult struct {
	id       int64
	affected int64
	items    []itemRecord
	err      error
}

// store maps ids to items; the counter only ever grows so ids are never reused.
type store struct {
	commands        chan storeCommand
	closed          chan struct{}
	persistRequests chan snapshot
	wg              sync.WaitGroup
	closeOnce       sync.Once

	items        map[int64]itemRecord
	order        []int64
	counter      int64
	snapshotPath string
}

// newStore loads the snapshot if present and spins the goroutines so every access flows through a channel.
func newStore(path string) (*store, error) {
	loaded, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	s := &store{
		commands:        make(chan storeCommand, 32),
		closed:          make(chan struct{}),
		persistRequests: make(chan snapshot, 1),
		items:           make(map[int64]itemRecord),
		snapshotPath:    path,
	}
	if loaded != nil {
		for _, rec := range loaded.Items {
			s.items[rec.ID] = rec
			s.order = append(s.order, rec.ID)
			if rec.ID > s.counter {
				s.counter = rec.ID
			}
		}
		if loaded.Counter > s.counter {
			s.counter = loaded.Counter
		}
	}
	s.wg.Add(2)
	go s.loop()
	go s.persistenceLoop()
	return s, nil
}

// loop serializes every mutation and read request to keep the state safe without mutexes.
func (s *store) loop() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.commands:
			cmd.reply <- s.apply(cmd)
		case <-s.closed:
			return
		}
	}
}

// apply executes one command against the state owned by loop.
func (s *store) apply(cmd storeCommand) storeResult {
	switch cmd.action {
	case "insertItem":
		s.counter++
		rec := cmd.item
		rec.ID = s.counter
		rec.CreatedAt = time.Now().UTC()
		s.items[rec.ID] = rec
		s.order = append(s.order, rec.ID)
		s.queuePersist()
		return storeResult{id: rec.ID, affected: 1}
	case "selectItem":
		rec, ok := s.items[cmd.id]
		if !ok {
			return storeResult{}
		}
		return storeResult{items: []itemRecord{rec}}
	case "selectItems":
		return storeResult{items: s.list()}
	case "updateItem":
		rec, ok := s.items[cmd.item.ID]
		if !ok {
			return storeResult{}
		}
		rec.Name = cmd.item.Name
		rec.Price = cmd.item.Price
		rec.Quantity = cmd.item.Quantity
		s.items[rec.ID] = rec
		s.queuePersist()
		return storeResult{affected: 1}
	case "noop":
		return storeResult{}
	default:
		return storeResult{err: fmt.Errorf("unsupported action %s", cmd.action)}
	}
}

// list returns a copy of every record in insertion order.
func (s *store) list() []itemRecord {
	out := make([]itemRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// persistenceLoop writes snapshots asynchronously so the main loop stays responsive.
func (s *store) persistenceLoop() {
	defer s.wg.Done()
	for {
		select {
		case snap := <-s.persistRequests:
			_ = writeSnapshot(s.snapshotPath, snap)
		case <-s.closed:
			return
		}
	}
}

// queuePersist hands the newest snapshot to the writer, replacing one that is still pending.
func (s *store) queuePersist() {
	if s.snapshotPath == "" {
		return
	}
	snap := s.snapshot()
	select {
	case s.persistRequests <- snap:
	default:
		select {
		case <-s.persistRequests:
		default:
		}
		s.persistRequests <- snap
	}
}

func (s *store) snapshot() snapshot {
	return snapshot{Items: s.list(), Counter: s.counter}
}

// close stops both goroutines and flushes the final state synchronously.
func (s *store) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.wg.Wait()
		if s.snapshotPath != "" {
			err = writeSnapshot(s.snapshotPath, s.snapshot())
		}
	})
	return err
}

// Connector hands database/sql connections that all share one store.
type Connector struct {
	store *store
}

// NewConnector starts a store; a non-empty path enables JSON snapshots at that location.
func NewConnector(path string) (*Connector, error) {
	s, err := newStore(path)
	if err != nil {
		return nil, err
	}
	return &Connector{store: s}, nil
}

// Connect implements driver.Connector.
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{store: c.store}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver {
	return &Driver{store: c.store}
}

// Close stops the store goroutines and writes the last snapshot.
func (c *Connector) Close() {
	_ = c.store.close()
}

// Driver wires the store into the database/sql world.
type Driver struct {
	store *store
}

// Open creates a connection that forwards calls to the shared store.
func (d *Driver) Open(name string) (driver.Conn, error) {
	if d.store == nil {
		return nil, errors.New("memory driver store is not initialized")
	}
	return &conn{store: d.store}, nil
}

// conn represents a lightweight connection object; every operation still travels through channels.
type conn struct {
	store *store
}

// Prepare builds a statement object for the small set of supported queries.
func (c *conn) Prepare(query string) (driver.Stmt, error) {
	trimmed := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	switch {
	case strings.HasPrefix(trimmed, "insert into items"):
		return &stmt{store: c.store, query: "insertItem"}, nil
	case strings.HasPrefix(trimmed, "select") && strings.Contains(trimmed, "from items") && strings.Contains(trimmed, "where id"):
		return &stmt{store: c.store, query: "selectItem"}, nil
	case strings.HasPrefix(trimmed, "select") && strings.Contains(trimmed, "from items"):
		return &stmt{store: c.store, query: "selectItems"}, nil
	case strings.HasPrefix(trimmed, "update items"):
		return &stmt{store: c.store, query: "updateItem"}, nil
	case strings.HasPrefix(trimmed, "create table"):
		return &stmt{store: c.store, query: "noop"}, nil
	default:
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
}

// Close is a no-op because the shared store owns the lifecycle.
func (c *conn) Close() error { return nil }

// Begin is not implemented because the item store operates without transactions.
func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions are not supported by the memory driver")
}

// stmt forwards Exec and Query to the store with the data shaped for each case.
type stmt struct {
	store *store
	query string
}

// Close is a no-op since statements do not maintain resources in this simple driver.
func (s *stmt) Close() error { return nil }

// NumInput matches the driver.Stmt contract; -1 allows database/sql to accept any argument count.
func (s *stmt) NumInput() int { return -1 }

// Exec handles the mutation statements supported by the driver.
func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	if s.query == "noop" {
		return execResult{}, nil
	}
	cmd := storeCommand{action: s.query}

	switch s.query {
	case "insertItem":
		if len(args) < 3 {
			return nil, fmt.Errorf("expected 3 arguments, got %d", len(args))
		}
		cmd.item = itemRecord{
			Name:     toString(args[0]),
			Price:    toInt64(args[1]),
			Quantity: toInt64(args[2]),
		}
	case "updateItem":
		if len(args) < 4 {
			return nil, fmt.Errorf("expected 4 arguments, got %d", len(args))
		}
		cmd.item = itemRecord{
			Name:     toString(args[0]),
			Price:    toInt64(args[1]),
			Quantity: toInt64(args[2]),
			ID:       toInt64(args[3]),
		}
	default:
		return nil, fmt.Errorf("unsupported exec action %s", s.query)
	}

	res, err := s.roundTrip(cmd)
	if err != nil {
		return nil, err
	}
	return execResult{id: res.id, affected: res.affected}, nil
}

// Query fetches the stored records and converts them into driver.Rows.
func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	cmd := storeCommand{action: s.query}
	switch s.query {
	case "selectItem":
		if len(args) < 1 {
			return nil, errors.New("expected id for select")
		}
		cmd.id = toInt64(args[0])
	case "selectItems":
	default:
		return nil, errors.New("query only supports selecting items")
	}

	res, err := s.roundTrip(cmd)
	if err != nil {
		return nil, err
	}
	return &rows{items: res.items}, nil
}

// roundTrip enqueues the command while honoring a timeout to avoid blocking forever.
func (s *stmt) roundTrip(cmd storeCommand) (storeResult, error) {
	reply := make(chan storeResult, 1)
	cmd.reply = reply

	select {
	case s.store.commands <- cmd:
	case <-s.store.closed:
		return storeResult{}, errClosed
	case <-time.After(2 * time.Second):
		return storeResult{}, errors.New("timed out while enqueuing command")
	}

	select {
	case res := <-reply:
		return res, res.err
	case <-s.store.closed:
		return storeResult{}, errClosed
	}
}

// execResult fulfills the driver.Result interface with the generated identifier.
type execResult struct {
	id       int64
	affected int64
}

func (r execResult) LastInsertId() (int64, error) { return r.id, nil }
func (r execResult) RowsAffected() (int64, error) { return r.affected, nil }

// rows iterates through the stored records while serving Columns and Next calls.
type rows struct {
	items []itemRecord
	index int
}

// Columns aligns with the SELECT projection used by the repository.
func (r *rows) Columns() []string {
	return []string{"id", "item_name", "price", "quantity"}
}

func (r *rows) Close() error { return nil }

// Next moves through the records and writes the column data into the provided slice.
func (r *rows) Next(dest []driver.Value) error {
	if r.index >= len(r.items) {
		return io.EOF
	}
	record := r.items[r.index]
	r.index++
	dest[0] = record.ID
	dest[1] = record.Name
	dest[2] = record.Price
	dest[3] = record.Quantity
	return nil
}

// toString converts driver.Value into a usable string.
func toString(value driver.Value) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toInt64 converts driver.Value to int64 for ids and amounts.
func toInt64(value driver.Value) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case string:
		if v == "" {
			return 0
		}
		var parsed int64
		fmt.Sscanf(v, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}

// readSnapshot loads the persisted JSON file if it exists.
func readSnapshot(path string) (*snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// writeSnapshot persists the current state to disk through a rename so readers never see half a file.
func writeSnapshot(path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}
