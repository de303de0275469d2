package trade

import (
	"go.uber.org/zap"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/metrics"
)

// Engine computes order quotes. It holds no market state: every method
// is a pure function of its arguments plus the injected configuration,
// safe to re-run against any fresh snapshot.
type Engine struct {
	params  config.EngineParams
	impact  market.ImpactModel
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewEngine(params config.EngineParams, impact market.ImpactModel, log *zap.Logger, m *metrics.Metrics) *Engine {
	if impact == nil {
		impact = market.NoImpact{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{params: params, impact: impact, log: log, metrics: m}
}

func (e *Engine) Params() config.EngineParams {
	return e.params
}
