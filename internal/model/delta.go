package model

// Delta is an incremental book update. A zero quantity removes the level,
// any other quantity replaces it.
type Delta struct {
	Exchange string
	Symbol   Symbol
	Bids     []PriceLevel
	Asks     []PriceLevel
	TsNano   int64
	Seq      uint64
}

// Apply merges the delta into book in place. Ordering is restored by the
// cleaning pipeline afterwards, so sides are treated as plain level sets.
func (d *Delta) Apply(book *OrderBook) {
	if d == nil || book == nil {
		return
	}
	book.Bids = applyLevels(book.Bids, d.Bids)
	book.Asks = applyLevels(book.Asks, d.Asks)
	if d.TsNano > book.TsNano {
		book.TsNano = d.TsNano
	}
	if d.Seq > book.Seq {
		book.Seq = d.Seq
	}
}

func applyLevels(levels, changes []PriceLevel) []PriceLevel {
	for _, change := range changes {
		found := false
		for i := range levels {
			if levels[i].Price != change.Price {
				continue
			}
			found = true
			if change.Quantity == 0 {
				levels[i] = levels[len(levels)-1]
				levels = levels[:len(levels)-1]
			} else {
				levels[i].Quantity = change.Quantity
			}
			break
		}
		if !found && change.Quantity > 0 {
			levels = append(levels, change)
		}
	}
	return levels
}
