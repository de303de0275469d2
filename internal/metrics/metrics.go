package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	PositionsAggregated Counter
	PositionsSkipped    Counter
	SwapRoutesEmpty     Counter
	IncreaseQuotes      Counter
	DecreaseQuotes      Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		PositionsAggregated: n,
		PositionsSkipped:    n,
		SwapRoutesEmpty:     n,
		IncreaseQuotes:      n,
		DecreaseQuotes:      n,
	}
}
