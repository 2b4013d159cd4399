package cart

import (
	"fmt"

	"github.com/roach88/offpos/internal/model"
)

// OpKind names a cart mutation.
type OpKind string

const (
	OpAdd         OpKind = "add"
	OpRemove      OpKind = "remove"
	OpAdjust      OpKind = "adjust"
	OpSetQuantity OpKind = "set_quantity"
	OpClear       OpKind = "clear"
)

// Op is one cart mutation as data, so it can come from the CLI or a
// scenario file just as well as from code.
type Op struct {
	Kind      OpKind        `yaml:"op" json:"op"`
	Product   model.Product `yaml:"product,omitempty" json:"product,omitempty"`
	ProductID string        `yaml:"product_id,omitempty" json:"product_id,omitempty"`
	Delta     int           `yaml:"delta,omitempty" json:"delta,omitempty"`
	Quantity  int           `yaml:"qty,omitempty" json:"qty,omitempty"`
}

func (op Op) apply(c *model.Cart) error {
	name := "cart " + string(op.Kind)
	switch op.Kind {
	case OpAdd:
		if op.Product.ID == "" {
			return fmt.Errorf("%s: product id is required", name)
		}
		c.Add(op.Product)
	case OpRemove:
		if !c.Remove(op.ProductID) {
			return model.NewNotFound(name, "cart", op.ProductID)
		}
	case OpAdjust:
		if !c.Adjust(op.ProductID, op.Delta) {
			return model.NewNotFound(name, "cart", op.ProductID)
		}
	case OpSetQuantity:
		if !c.SetQuantity(op.ProductID, op.Quantity) {
			return model.NewNotFound(name, "cart", op.ProductID)
		}
	case OpClear:
		c.Clear()
	default:
		return fmt.Errorf("unknown cart op %q", op.Kind)
	}
	return nil
}
