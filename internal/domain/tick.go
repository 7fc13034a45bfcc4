// Package domain holds the market-data and order entities shared by every
// component: ticks, orders with their lifecycle state machine, trades, and
// positions.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DataKind identifies which top-of-book figure a tick carries.
type DataKind int

const (
	KindUnknown DataKind = iota
	KindPrice
	KindOpenInterest
	KindBestBid
	KindBestOffer
	KindDepth
	KindTotalSupply
	KindTotalDemand
)

// String returns the lowercase wire name of the data kind.
func (k DataKind) String() string {
	switch k {
	case KindPrice:
		return "price"
	case KindOpenInterest:
		return "open_interest"
	case KindBestBid:
		return "best_bid"
	case KindBestOffer:
		return "best_offer"
	case KindDepth:
		return "depth"
	case KindTotalSupply:
		return "total_supply"
	case KindTotalDemand:
		return "total_demand"
	default:
		return "unknown"
	}
}

// ParseDataKind converts a wire name back into a DataKind. Unrecognised
// names map to KindUnknown.
func ParseDataKind(s string) DataKind {
	switch s {
	case "price":
		return KindPrice
	case "open_interest":
		return KindOpenInterest
	case "best_bid":
		return KindBestBid
	case "best_offer":
		return KindBestOffer
	case "depth":
		return KindDepth
	case "total_supply":
		return KindTotalSupply
	case "total_demand":
		return KindTotalDemand
	default:
		return KindUnknown
	}
}

// Tick is a single immutable market-data observation for an instrument.
// Instrument keys are opaque strings, conventionally "CLASS#CODE".
type Tick struct {
	Instrument string
	Kind       DataKind
	Value      decimal.Decimal
	Volume     int64
	Timestamp  int64  // Unix seconds
	Useconds   uint32 // sub-second offset
}

// IsZero reports whether the tick is the zero-value sentinel returned by
// cache misses.
func (t Tick) IsZero() bool {
	return t.Kind == KindUnknown && t.Value.IsZero() && t.Timestamp == 0
}

// Time returns the tick's wall-clock time including the sub-second offset.
func (t Tick) Time() time.Time {
	return time.Unix(t.Timestamp, int64(t.Useconds)*int64(time.Microsecond))
}
