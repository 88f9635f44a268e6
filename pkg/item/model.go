package item

// Item is a single catalogue entry managed through the add and edit forms.
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"itemName"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// New builds an unsaved item; the store assigns the id on Save.
func New(name string, price, quantity int) Item {
	return Item{Name: name, Price: price, Quantity: quantity}
}

// IsNew reports whether the item has not been persisted yet.
func (i Item) IsNew() bool {
	return i.ID == 0
}
