package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"itemservice/pkg/item"
)

var (
	errNotInteger = errors.New("must be an integer")
	errOutOfRange = errors.New("must fit in a 32-bit integer")
	errBadID      = errors.New("must be a positive integer")
)

// FormError reports a request field that could not be coerced into its type.
type FormError struct {
	Field string
	Value string
	Err   error
}

func (e *FormError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FormError) Unwrap() error { return e.Err }

// IsValidation helps callers distinguish bad input from infrastructure failures.
func IsValidation(err error) bool {
	var fe *FormError
	return errors.As(err, &fe)
}

// ItemForm is the parsed add/edit form.
type ItemForm struct {
	Name     string
	Price    int
	Quantity int
}

// Item builds an unsaved item from the form.
func (f ItemForm) Item() item.Item {
	return item.New(f.Name, f.Price, f.Quantity)
}

// ParseItemForm reads itemName (or name), price and quantity from the request.
// Price and quantity must be integers; names are trimmed and NFC-normalised.
func ParseItemForm(r *http.Request) (ItemForm, error) {
	if err := r.ParseForm(); err != nil {
		return ItemForm{}, &FormError{Field: "form", Err: err}
	}

	name := r.Form.Get("itemName")
	if _, ok := r.Form["itemName"]; !ok {
		name = r.Form.Get("name")
	}

	price, err := parseInt("price", r.Form.Get("price"))
	if err != nil {
		return ItemForm{}, err
	}
	quantity, err := parseInt("quantity", r.Form.Get("quantity"))
	if err != nil {
		return ItemForm{}, err
	}

	return ItemForm{
		Name:     norm.NFC.String(strings.TrimSpace(name)),
		Price:    price,
		Quantity: quantity,
	}, nil
}

// ParseItemID converts the itemId path segment.
func ParseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &FormError{Field: "itemId", Value: raw, Err: errBadID}
	}
	return id, nil
}

// parseInt accepts 32-bit values only so every backend's INTEGER column can hold them.
func parseInt(field, raw string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, &FormError{Field: field, Value: raw, Err: errOutOfRange}
	}
	if err != nil {
		return 0, &FormError{Field: field, Value: raw, Err: errNotInteger}
	}
	return int(n), nil
}
