// Package builtins provides built-in strategy implementations.
package builtins

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
	"vulcan/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy on price
// ticks. It generates a buy signal when the short-period SMA crosses above
// the long-period SMA, and a sell signal when it crosses below. The strategy
// tracks one instrument and trades a fixed quantity per signal.
type SMACross struct {
	instrument  string
	shortPeriod int
	longPeriod  int
	quantity    int64

	prices []decimal.Decimal // ring of the last longPeriod prices
	above  bool              // short SMA currently above long SMA
	primed bool              // enough data to compare SMAs
}

// NewSMACross creates an SMACross trading quantity units of instrument per
// crossover, with the specified short and long moving average periods.
func NewSMACross(instrument string, short, long int, quantity int64) *SMACross {
	return &SMACross{
		instrument:  instrument,
		shortPeriod: short,
		longPeriod:  long,
		quantity:    quantity,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init validates the period configuration.
func (s *SMACross) Init(_ context.Context) error {
	if s.shortPeriod <= 0 || s.longPeriod <= s.shortPeriod {
		return fmt.Errorf("sma-cross: need 0 < short (%d) < long (%d)", s.shortPeriod, s.longPeriod)
	}
	if s.quantity <= 0 {
		return fmt.Errorf("sma-cross: quantity must be positive, got %d", s.quantity)
	}
	s.prices = make([]decimal.Decimal, 0, s.longPeriod)
	return nil
}

// OnTick consumes price ticks for the strategy's instrument and emits a
// signal on each SMA crossover.
func (s *SMACross) OnTick(_ context.Context, tick domain.Tick) ([]strategy.Signal, error) {
	if tick.Instrument != s.instrument || tick.Kind != domain.KindPrice {
		return nil, nil
	}

	if len(s.prices) == s.longPeriod {
		copy(s.prices, s.prices[1:])
		s.prices = s.prices[:s.longPeriod-1]
	}
	s.prices = append(s.prices, tick.Value)
	if len(s.prices) < s.longPeriod {
		return nil, nil
	}

	shortSMA := average(s.prices[len(s.prices)-s.shortPeriod:])
	longSMA := average(s.prices)
	above := shortSMA.GreaterThan(longSMA)

	// The first full window only establishes which side we are on.
	if !s.primed {
		s.primed = true
		s.above = above
		return nil, nil
	}
	if above == s.above {
		return nil, nil
	}
	s.above = above

	op := domain.Sell
	if above {
		op = domain.Buy
	}
	return []strategy.Signal{{
		ID:         strategy.NextSignalID(),
		Strategy:   s.Name(),
		Instrument: s.instrument,
		Operation:  op,
		Quantity:   s.quantity,
	}}, nil
}

// OnTrade ignores fills; the crossover logic is price-driven only.
func (s *SMACross) OnTrade(_ context.Context, _ domain.Trade) ([]strategy.Signal, error) {
	return nil, nil
}

func average(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
