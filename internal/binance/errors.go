package binance

import "fmt"

// GatewayError covers market-data and account failures (klines, ticker,
// exchangeInfo, balances). Callers treat these as per-attempt transient.
type GatewayError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binance %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("binance %s: http %d: %s", e.Op, e.Status, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// OrderError covers order submission failures.
type OrderError struct {
	Symbol string
	Side   string
	Status int
	Body   string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binance order %s %s: %v", e.Side, e.Symbol, e.Err)
	}
	return fmt.Sprintf("binance order %s %s: http %d: %s", e.Side, e.Symbol, e.Status, e.Body)
}

func (e *OrderError) Unwrap() error { return e.Err }
