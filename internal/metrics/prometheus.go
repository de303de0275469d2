package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "perp_order_engine"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry            *prometheus.Registry
	positionsAggregated prometheus.Counter
	positionsSkipped    prometheus.Counter
	swapRoutesEmpty     prometheus.Counter
	increaseQuotes      prometheus.Counter
	decreaseQuotes      prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	positionsAggregated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_aggregated_total",
		Help:      "Total number of positions merged into extended records.",
	})
	positionsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_skipped_total",
		Help:      "Total number of positions skipped for missing market or token references.",
	})
	swapRoutesEmpty := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "swap_routes_empty_total",
		Help:      "Total number of swap valuations with no viable route.",
	})
	increaseQuotes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "increase_quotes_total",
		Help:      "Total number of increase order quotes computed.",
	})
	decreaseQuotes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "decrease_quotes_total",
		Help:      "Total number of decrease order quotes computed.",
	})

	registry.MustRegister(positionsAggregated, positionsSkipped, swapRoutesEmpty, increaseQuotes, decreaseQuotes)

	m := &Metrics{
		PositionsAggregated: promCounter{positionsAggregated},
		PositionsSkipped:    promCounter{positionsSkipped},
		SwapRoutesEmpty:     promCounter{swapRoutesEmpty},
		IncreaseQuotes:      promCounter{increaseQuotes},
		DecreaseQuotes:      promCounter{decreaseQuotes},
	}

	return &Prometheus{
		Metrics:             m,
		registry:            registry,
		positionsAggregated: positionsAggregated,
		positionsSkipped:    positionsSkipped,
		swapRoutesEmpty:     swapRoutesEmpty,
		increaseQuotes:      increaseQuotes,
		decreaseQuotes:      decreaseQuotes,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
