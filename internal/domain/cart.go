package domain

// CartItem is a single cart line. The name acts as the natural key: adding the
// same name again increments quantity instead of appending a duplicate line.
type CartItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartView is the read-only rendering of the cart
type CartView struct {
	Items []CartItem
	Total float64
	Empty bool
}

// NewCartView computes the view for the given items
func NewCartView(items []CartItem) CartView {
	return CartView{
		Items: CloneItems(items),
		Total: TotalPrice(items),
		Empty: len(items) == 0,
	}
}

// TotalQuantity returns the badge count across all lines
func TotalQuantity(items []CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of price x quantity across all lines
func TotalPrice(items []CartItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// ItemsEqual reports whether two carts are structurally identical, including order
func ItemsEqual(a, b []CartItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneItems returns an independent copy of the given cart
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}
