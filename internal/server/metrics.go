package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	render   *prometheus.HistogramVec
	items    *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfeeds",
			Name:      "feed_requests_total",
			Help:      "Feed requests by format and response status",
		}, []string{"format", "status"}),
		render: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventfeeds",
			Name:      "feed_render_seconds",
			Help:      "Time spent building and writing a feed",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "eventfeeds",
			Name:      "feed_items",
			Help:      "Number of items in the last feed served",
		}, []string{"format"}),
	}
	reg.MustRegister(m.requests, m.render, m.items)
	return m
}
