package cache

import (
	"strings"

	"main/internal/model"
)

// Key addresses a canonical book across all tiers.
type Key struct {
	Exchange string
	Symbol   model.Symbol
}

// String renders "exchange|BASE-QUOTE", filesystem- and badger-safe.
func (k Key) String() string {
	return k.Exchange + "|" + k.Symbol.Base + "-" + k.Symbol.Quote
}

// ParseKey inverts String.
func ParseKey(s string) (Key, bool) {
	sep := strings.IndexByte(s, '|')
	if sep <= 0 {
		return Key{}, false
	}
	sym, err := model.ParseSymbol(s[sep+1:])
	if err != nil {
		return Key{}, false
	}
	return Key{Exchange: s[:sep], Symbol: sym}, true
}

// exchangePrefix is the tier-2/3 key prefix for one exchange.
func exchangePrefix(exchange string) string {
	return exchange + "|"
}
