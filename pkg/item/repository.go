package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"itemservice/pkg/storage"
)

// Repository persists items through database/sql so storage backends stay swappable.
type Repository struct {
	db      *sql.DB
	dialect storage.Dialect
}

// NewRepository wraps an opened storage handle.
func NewRepository(db *storage.DB) *Repository {
	return &Repository{db: db.DB, dialect: db.Dialect}
}

// Save inserts the item under a freshly assigned id and returns the stored copy.
// Any id already set on the argument is ignored.
func (r *Repository) Save(ctx context.Context, item Item) (Item, error) {
	query := "INSERT INTO items (item_name, price, quantity) VALUES (?, ?, ?)"
	if r.dialect.Returning() {
		var id int64
		err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query+" RETURNING id"), item.Name, item.Price, item.Quantity).Scan(&id)
		if err != nil {
			return Item{}, fmt.Errorf("insert item: %w", err)
		}
		item.ID = id
		return item, nil
	}

	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), item.Name, item.Price, item.Quantity)
	if err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	item.ID = id
	return item, nil
}

// FindByID loads a single item or returns ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (Item, error) {
	query := "SELECT id, item_name, price, quantity FROM items WHERE id = ?"
	var item Item
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id).Scan(&item.ID, &item.Name, &item.Price, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("select item %d: %w", id, err)
	}
	return item, nil
}

// FindAll returns every item in insertion order; ids grow monotonically so ordering by id is enough.
func (r *Repository) FindAll(ctx context.Context) ([]Item, error) {
	query := "SELECT id, item_name, price, quantity FROM items ORDER BY id ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update replaces name, price and quantity of the item stored under id; the id itself never changes.
func (r *Repository) Update(ctx context.Context, id int64, values Item) error {
	query := "UPDATE items SET item_name = ?, price = ?, quantity = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), values.Name, values.Price, values.Quantity, id)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}
