package binance

import (
	"encoding/json"

	"main/internal/model"
)

// streamEnvelope wraps every message on a combined stream endpoint.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthUpdate is the diff-depth stream payload.
type depthUpdate struct {
	Event    string     `json:"e"`
	EventTs  int64      `json:"E"`
	Symbol   string     `json:"s"`
	FirstSeq uint64     `json:"U"`
	FinalSeq uint64     `json:"u"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
}

// tradePayload is the trade stream payload.
type tradePayload struct {
	Event        string `json:"e"`
	EventTs      int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

// restDepth is the REST depth snapshot response.
type restDepth struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// parseLevels converts [price, qty] string pairs, appending to dst.
// Unparseable rows abort: a book with silently missing levels is worse
// than no book.
func parseLevels(dst []model.PriceLevel, rows [][]string) ([]model.PriceLevel, error) {
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		price, err := model.ParsePrice(row[0])
		if err != nil {
			return dst, err
		}
		qty, err := model.ParseQuantity(row[1])
		if err != nil {
			return dst, err
		}
		dst = append(dst, model.PriceLevel{Price: price, Quantity: qty})
	}
	return dst, nil
}
