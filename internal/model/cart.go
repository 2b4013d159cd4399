package model

// CartItem is one line of the working cart. Quantity is always at least 1.
type CartItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Quantity       int    `json:"qty"`
}

// SubtotalMinor returns unit price times quantity.
func (i CartItem) SubtotalMinor() int64 {
	return i.UnitPriceMinor * int64(i.Quantity)
}

// Cart is the ordered working cart. Lines are unique by ProductID.
//
// Cart methods mutate the receiver; callers that share a Cart must Clone it.
type Cart struct {
	Items []CartItem `json:"items"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy. The Items slice of the copy is never nil.
func (c *Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Add puts one unit of p in the cart. Re-adding a product increments the
// existing line instead of appending a duplicate.
func (c *Cart) Add(p Product) {
	if i := c.index(p.ID); i >= 0 {
		c.Items[i].Quantity++
		return
	}
	c.Items = append(c.Items, CartItem{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPriceMinor: p.PriceMinor,
		Quantity:       1,
	})
}

// Remove deletes the line for productID. Returns false if there was none.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Adjust changes a line's quantity by delta, clamping at 1.
// Returns false if the product is not in the cart.
func (c *Cart) Adjust(productID string, delta int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = max(1, c.Items[i].Quantity+delta)
	return true
}

// SetQuantity sets a line's quantity, clamping at 1.
// Returns false if the product is not in the cart.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = max(1, qty)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// Lines snapshots the cart into the remote commit item shape.
func (c *Cart) Lines() []SaleLine {
	lines := make([]SaleLine, len(c.Items))
	for i, item := range c.Items {
		lines[i] = SaleLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// TotalMinor returns the cart total in minor units.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.SubtotalMinor()
	}
	return total
}

func (c *Cart) index(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
