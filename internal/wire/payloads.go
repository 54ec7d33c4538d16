package wire

import "plazza/internal/pizza"

// OrderPayload is the packed form of a PizzaOrder message:
// u32 type, u32 size, u32 quantity, u32 orderId.
type OrderPayload struct {
	Type     pizza.Type
	Size     pizza.Size
	Quantity uint32
	OrderID  uint32
}

func (o OrderPayload) Pack() *Buffer {
	b := NewBuffer()
	b.PutUint32(uint32(o.Type))
	b.PutUint32(uint32(o.Size))
	b.PutUint32(o.Quantity)
	b.PutUint32(o.OrderID)
	return b
}

func UnpackOrder(b *Buffer) (OrderPayload, error) {
	b.Reset()
	var o OrderPayload
	typeVal, err := b.GetUint32()
	if err != nil {
		return o, err
	}
	sizeVal, err := b.GetUint32()
	if err != nil {
		return o, err
	}
	qty, err := b.GetUint32()
	if err != nil {
		return o, err
	}
	orderID, err := b.GetUint32()
	if err != nil {
		return o, err
	}
	o.Type = pizza.Type(typeVal)
	o.Size = pizza.Size(sizeVal)
	o.Quantity = qty
	o.OrderID = orderID
	return o, nil
}

// StockEntry is one (ingredient, count) pair inside a KitchenStatus payload.
type StockEntry struct {
	Ingredient pizza.Ingredient
	Count      uint32
}

// StatusPayload is the packed form of a KitchenStatus message:
// u32 kitchenId, u32 busyCooks, u32 totalCooks, u32 pendingPizzas,
// u32 N, N x (u32 ingredient, u32 count).
type StatusPayload struct {
	KitchenID     uint32
	BusyCooks     uint32
	TotalCooks    uint32
	PendingPizzas uint32
	Stock         []StockEntry
}

func (s StatusPayload) Pack() *Buffer {
	b := NewBuffer()
	b.PutUint32(s.KitchenID)
	b.PutUint32(s.BusyCooks)
	b.PutUint32(s.TotalCooks)
	b.PutUint32(s.PendingPizzas)
	b.PutUint32(uint32(len(s.Stock)))
	for _, e := range s.Stock {
		b.PutUint32(uint32(e.Ingredient))
		b.PutUint32(e.Count)
	}
	return b
}

func UnpackStatus(b *Buffer) (StatusPayload, error) {
	b.Reset()
	var s StatusPayload
	var err error
	if s.KitchenID, err = b.GetUint32(); err != nil {
		return s, err
	}
	if s.BusyCooks, err = b.GetUint32(); err != nil {
		return s, err
	}
	if s.TotalCooks, err = b.GetUint32(); err != nil {
		return s, err
	}
	if s.PendingPizzas, err = b.GetUint32(); err != nil {
		return s, err
	}
	n, err := b.GetUint32()
	if err != nil {
		return s, err
	}
	s.Stock = make([]StockEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		ingredient, err := b.GetUint32()
		if err != nil {
			return s, err
		}
		count, err := b.GetUint32()
		if err != nil {
			return s, err
		}
		s.Stock = append(s.Stock, StockEntry{Ingredient: pizza.Ingredient(ingredient), Count: count})
	}
	return s, nil
}

// pizzaPacket is the inner packed pizza carried inside a CompletionPayload:
// u32 type, u32 size, u32 orderId, u32 kitchenId.
type pizzaPacket struct {
	Type      pizza.Type
	Size      pizza.Size
	OrderID   uint32
	KitchenID uint32
}

func packPizza(p pizza.Pizza) *Buffer {
	b := NewBuffer()
	b.PutUint32(uint32(p.Type))
	b.PutUint32(uint32(p.Size))
	b.PutUint32(p.OrderID)
	b.PutUint32(p.KitchenID)
	return b
}

func unpackPizza(b *Buffer) (pizza.Pizza, error) {
	b.Reset()
	var p pizza.Pizza
	typeVal, err := b.GetUint32()
	if err != nil {
		return p, err
	}
	sizeVal, err := b.GetUint32()
	if err != nil {
		return p, err
	}
	orderID, err := b.GetUint32()
	if err != nil {
		return p, err
	}
	kitchenID, err := b.GetUint32()
	if err != nil {
		return p, err
	}
	p.Type = pizza.Type(typeVal)
	p.Size = pizza.Size(sizeVal)
	p.OrderID = orderID
	p.KitchenID = kitchenID
	return p, nil
}

// CompletionPayload is the packed form of a PizzaCompleted message:
// bytes innerPacket (the packed pizza), u64 nanoseconds.
type CompletionPayload struct {
	Pizza          pizza.Pizza
	CompletionNano uint64
}

func (c CompletionPayload) Pack() *Buffer {
	b := NewBuffer()
	inner := packPizza(c.Pizza)
	b.PutBytes(inner.Bytes())
	b.PutUint64(c.CompletionNano)
	return b
}

func UnpackCompletion(b *Buffer) (CompletionPayload, error) {
	b.Reset()
	var c CompletionPayload
	innerBytes, err := b.GetBytes()
	if err != nil {
		return c, err
	}
	p, err := unpackPizza(BufferFromBytes(innerBytes))
	if err != nil {
		return c, err
	}
	nanos, err := b.GetUint64()
	if err != nil {
		return c, err
	}
	c.Pizza = p
	c.CompletionNano = nanos
	return c, nil
}
