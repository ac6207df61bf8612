package types

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// Book event types sent by the venue's market channel.
const (
	EventBook        = "book"
	EventPriceChange = "price_change"
	EventLastTrade   = "last_trade_price"
)

// BookMessage is one event from the venue's market data stream. The venue
// encodes timestamps and prices as strings.
type BookMessage struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp int64        `json:"-"`
	Hash      string       `json:"hash,omitempty"`
	Bids      []PriceLevel `json:"bids,omitempty"`
	Asks      []PriceLevel `json:"asks,omitempty"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (b *BookMessage) UnmarshalJSON(data []byte) error {
	type Alias BookMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		b.Timestamp = ts
	}
	return nil
}

// PriceLevel is one level of a book side.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BestAsk returns the lowest ask in the message, or false when the ask side
// is empty or unparseable.
func (b *BookMessage) BestAsk() (string, bool) {
	if len(b.Asks) == 0 {
		return "", false
	}
	best := b.Asks[0].Price
	bestF, err := strconv.ParseFloat(best, 64)
	if err != nil {
		return "", false
	}
	for _, lvl := range b.Asks[1:] {
		f, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		if f < bestF {
			bestF = f
			best = lvl.Price
		}
	}
	return best, true
}
