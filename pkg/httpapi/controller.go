package httpapi

import (
	"context"

	"go.uber.org/zap"

	"itemservice/pkg/item"
)

// View names resolved against the embedded templates.
const (
	viewItems    = "items"
	viewItem     = "item"
	viewAddForm  = "addForm"
	viewEditForm = "editForm"
)

// itemPath is the detail page every successful write redirects to.
const itemPath = "/items/{itemId}"

// ItemController turns parsed requests into view directives. It knows nothing about net/http.
type ItemController struct {
	items  item.Store
	logger *zap.Logger
}

// NewItemController wires the store; a nil logger discards output.
func NewItemController(items item.Store, logger *zap.Logger) *ItemController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemController{items: items, logger: logger}
}

// Items renders the full list.
func (c *ItemController) Items(ctx context.Context) (Result, error) {
	items, err := c.items.FindAll(ctx)
	if err != nil {
		return Result{}, err
	}
	return Render(viewItems, Model{"items": items}), nil
}

// Item renders one item; status is the one-shot flag set by the redirect after a create.
func (c *ItemController) Item(ctx context.Context, id int64, status bool) (Result, error) {
	found, err := c.items.FindByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Render(viewItem, Model{"item": found, "status": status}), nil
}

// AddForm renders the empty add form.
func (c *ItemController) AddForm() Result {
	return Render(viewAddForm, Model{})
}

// AddItem saves the form as a new item and redirects to its detail page with status=true.
func (c *ItemController) AddItem(ctx context.Context, form ItemForm) (Result, error) {
	saved, err := c.items.Save(ctx, form.Item())
	if err != nil {
		return Result{}, err
	}
	requestLogger(ctx, c.logger).Info("item stored",
		zap.Int64("item_id", saved.ID),
		zap.String("item_name", saved.Name),
		zap.Int("price", saved.Price),
		zap.Int("quantity", saved.Quantity))

	return RedirectTo(itemPath).
		With("itemId", saved.ID).
		With("status", true).
		Result(), nil
}

// EditForm renders the edit form prefilled with the stored item.
func (c *ItemController) EditForm(ctx context.Context, id int64) (Result, error) {
	found, err := c.items.FindByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Render(viewEditForm, Model{"item": found}), nil
}

// Edit replaces the stored fields and redirects back to the detail page.
func (c *ItemController) Edit(ctx context.Context, id int64, form ItemForm) (Result, error) {
	if err := c.items.Update(ctx, id, form.Item()); err != nil {
		return Result{}, err
	}
	requestLogger(ctx, c.logger).Info("item updated",
		zap.Int64("item_id", id),
		zap.String("item_name", form.Name),
		zap.Int("price", form.Price),
		zap.Int("quantity", form.Quantity))

	return RedirectTo(itemPath).With("itemId", id).Result(), nil
}
