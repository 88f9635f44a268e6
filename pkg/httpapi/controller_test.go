package httpapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"itemservice/pkg/item"
	"itemservice/pkg/storage"
)

// newItemService returns a memory-backed service closed at cleanup.
func newItemService(t *testing.T) *item.Service {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Options{Type: storage.TypeMemory})
	require.NoError(t, err)
	svc := item.NewService(item.NewRepository(db))
	t.Cleanup(func() {
		svc.Close()
		db.Close()
	})
	return svc
}

func TestController_AddItemRedirectsWithStatus(t *testing.T) {
	ctx := context.Background()
	c := NewItemController(newItemService(t), zaptest.NewLogger(t))

	res, err := c.AddItem(ctx, ItemForm{Name: "itemA", Price: 10000, Quantity: 10})
	require.NoError(t, err)
	require.True(t, res.IsRedirect())

	location, err := res.Redirect.Location()
	require.NoError(t, err)
	assert.Equal(t, "/items/1?status=true", location)

	detail, err := c.Item(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, viewItem, detail.View)
	assert.Equal(t, item.Item{ID: 1, Name: "itemA", Price: 10000, Quantity: 10}, detail.Model["item"])
	assert.Equal(t, true, detail.Model["status"])
}

func TestController_EditRedirectsWithoutStatus(t *testing.T) {
	ctx := context.Background()
	c := NewItemController(newItemService(t), nil)

	_, err := c.AddItem(ctx, ItemForm{Name: "itemA", Price: 10000, Quantity: 10})
	require.NoError(t, err)

	res, err := c.Edit(ctx, 1, ItemForm{Name: "itemA2", Price: 12000, Quantity: 5})
	require.NoError(t, err)
	location, err := res.Redirect.Location()
	require.NoError(t, err)
	assert.Equal(t, "/items/1", location)

	form, err := c.EditForm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, viewEditForm, form.View)
	assert.Equal(t, item.Item{ID: 1, Name: "itemA2", Price: 12000, Quantity: 5}, form.Model["item"])
}

func TestController_ListAndForms(t *testing.T) {
	ctx := context.Background()
	c := NewItemController(newItemService(t), nil)

	list, err := c.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, viewItems, list.View)
	assert.Empty(t, list.Model["items"])

	for _, f := range []ItemForm{{"itemA", 10000, 10}, {"itemB", 20000, 20}} {
		_, err := c.AddItem(ctx, f)
		require.NoError(t, err)
	}
	list, err = c.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item.Item{
		{ID: 1, Name: "itemA", Price: 10000, Quantity: 10},
		{ID: 2, Name: "itemB", Price: 20000, Quantity: 20},
	}, list.Model["items"])

	assert.Equal(t, viewAddForm, c.AddForm().View)
}

func TestController_NotFound(t *testing.T) {
	ctx := context.Background()
	c := NewItemController(newItemService(t), nil)

	_, err := c.Item(ctx, 999, false)
	assert.ErrorIs(t, err, item.ErrNotFound)

	_, err = c.EditForm(ctx, 999)
	assert.ErrorIs(t, err, item.ErrNotFound)

	_, err = c.Edit(ctx, 999, ItemForm{Name: "ghost"})
	assert.ErrorIs(t, err, item.ErrNotFound)
}
