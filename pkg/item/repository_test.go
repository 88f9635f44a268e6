package item_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itemservice/pkg/item"
	"itemservice/pkg/storage"
)

// backends lists the storage types the repository contract is checked against.
var backends = []string{storage.TypeMemory, storage.TypeSQLite}

// openRepository opens a fresh backend under t.TempDir.
func openRepository(t *testing.T, dbType string) *item.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items."+dbType)
	db, err := storage.Open(context.Background(), storage.Options{Type: dbType, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return item.NewRepository(db)
}

func TestRepository_SaveAssignsSequentialIDs(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			repo := openRepository(t, dbType)

			a, err := repo.Save(ctx, item.New("itemA", 10000, 10))
			require.NoError(t, err)
			b, err := repo.Save(ctx, item.New("itemB", 20000, 20))
			require.NoError(t, err)

			assert.Equal(t, int64(1), a.ID)
			assert.Equal(t, int64(2), b.ID)

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			want := []item.Item{
				{ID: 1, Name: "itemA", Price: 10000, Quantity: 10},
				{ID: 2, Name: "itemB", Price: 20000, Quantity: 20},
			}
			if diff := cmp.Diff(want, all); diff != "" {
				t.Errorf("FindAll() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRepository_SaveIgnoresIncomingID(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			repo := openRepository(t, dbType)

			stored, err := repo.Save(context.Background(), item.Item{ID: 42, Name: "itemA", Price: 1, Quantity: 1})
			require.NoError(t, err)
			assert.Equal(t, int64(1), stored.ID)
		})
	}
}

func TestRepository_UpdateKeepsID(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			repo := openRepository(t, dbType)

			_, err := repo.Save(ctx, item.New("itemA", 10000, 10))
			require.NoError(t, err)
			_, err = repo.Save(ctx, item.New("itemB", 20000, 20))
			require.NoError(t, err)

			err = repo.Update(ctx, 1, item.Item{ID: 7, Name: "itemA2", Price: 12000, Quantity: 5})
			require.NoError(t, err)

			got, err := repo.FindByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, item.Item{ID: 1, Name: "itemA2", Price: 12000, Quantity: 5}, got)

			other, err := repo.FindByID(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, item.Item{ID: 2, Name: "itemB", Price: 20000, Quantity: 20}, other)

			_, err = repo.FindByID(ctx, 7)
			assert.ErrorIs(t, err, item.ErrNotFound)
		})
	}
}

func TestRepository_NotFound(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			repo := openRepository(t, dbType)

			_, err := repo.FindByID(ctx, 999)
			assert.ErrorIs(t, err, item.ErrNotFound)

			err = repo.Update(ctx, 999, item.New("ghost", 1, 1))
			assert.ErrorIs(t, err, item.ErrNotFound)

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestRepository_UpdateWithSameValues(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			repo := openRepository(t, dbType)

			stored, err := repo.Save(ctx, item.New("itemA", 10000, 10))
			require.NoError(t, err)

			require.NoError(t, repo.Update(ctx, stored.ID, stored))
		})
	}
}

func TestRepository_IDsSurviveReopen(t *testing.T) {
	for _, dbType := range backends {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "items."+dbType)

			db, err := storage.Open(ctx, storage.Options{Type: dbType, Path: path})
			require.NoError(t, err)
			repo := item.NewRepository(db)
			for _, name := range []string{"itemA", "itemB", "itemC"} {
				_, err := repo.Save(ctx, item.New(name, 100, 1))
				require.NoError(t, err)
			}
			require.NoError(t, db.Close())

			db, err = storage.Open(ctx, storage.Options{Type: dbType, Path: path})
			require.NoError(t, err)
			defer db.Close()
			repo = item.NewRepository(db)

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			next, err := repo.Save(ctx, item.New("itemD", 100, 1))
			require.NoError(t, err)
			assert.Equal(t, int64(4), next.ID)
		})
	}
}
