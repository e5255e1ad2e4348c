package orderbook

// priceLevel is the FIFO queue of resting orders at one price.
type priceLevel struct {
	price  int64
	orders []*Order
	qty    int64 // sum of Remaining
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) push(o *Order) {
	l.orders = append(l.orders, o)
	l.qty += o.Remaining
}

func (l *priceLevel) head() *Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// remove drops o from the queue, keeping the relative order of the rest.
func (l *priceLevel) remove(o *Order) bool {
	for i, cur := range l.orders {
		if cur != o {
			continue
		}
		if i == 0 {
			l.orders[0] = nil
			l.orders = l.orders[1:]
		} else {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
		}
		return true
	}
	return false
}

func (l *priceLevel) empty() bool { return len(l.orders) == 0 }

func (l *priceLevel) snapshot() PriceLevel {
	return PriceLevel{Price: l.price, Qty: l.qty, Orders: len(l.orders)}
}
