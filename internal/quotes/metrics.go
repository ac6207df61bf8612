package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WatchedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_quotes_watched_markets",
		Help: "Markets currently watched by the quote feed",
	})

	QuotesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_quotes_emitted_total",
		Help: "Complete market quotes emitted",
	})

	QuotesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_quotes_dropped_total",
		Help: "Quotes dropped because the consumer channel was full",
	})

	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_quotes_rest_polls_total",
		Help: "Successful REST price polls while the stream was down",
	})
)
