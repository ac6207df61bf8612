package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_detector_quotes_evaluated_total",
		Help: "Quotes evaluated by outcome",
	}, []string{"outcome"})

	OpportunityProfitPct = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_detector_opportunity_profit_pct",
		Help:    "Profit percentage of detected opportunities",
		Buckets: []float64{0.005, 0.0075, 0.01, 0.015, 0.02, 0.03, 0.05, 0.1},
	})
)
