package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Produce outcomes used as metric labels.
const (
	OutcomeCreated = "created"
	OutcomeCached  = "cached"
	OutcomeFailed  = "failed"
)

// Observer captures telemetry for album production.
type Observer interface {
	RecordProduce(outcome, kind string, duration time.Duration)
	RecordPage(sizeBytes int64)
	RecordRetry()
}

// PrometheusObserver exports production metrics to Prometheus.
type PrometheusObserver struct {
	produceDuration *prometheus.HistogramVec
	produceTotal    *prometheus.CounterVec
	pagesTotal      prometheus.Counter
	pageBytes       prometheus.Counter
	retries         prometheus.Counter
}

// NewPrometheusObserver registers the albumpdf_* metrics with reg, or the
// default registerer when reg is nil.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	if o.produceDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "albumpdf",
		Name:      "produce_duration_seconds",
		Help:      "Time to produce a document, by outcome.",
		Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if o.produceTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "albumpdf",
		Name:      "produce_total",
		Help:      "Produce requests by outcome and error kind.",
	}, []string{"outcome", "kind"})); err != nil {
		return nil, err
	}
	if o.pagesTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "albumpdf",
		Name:      "pages_downloaded_total",
		Help:      "Page images downloaded.",
	})); err != nil {
		return nil, err
	}
	if o.pageBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "albumpdf",
		Name:      "page_bytes_total",
		Help:      "Bytes of page images downloaded.",
	})); err != nil {
		return nil, err
	}
	if o.retries, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "albumpdf",
		Name:      "download_retries_total",
		Help:      "Request attempts retried after a transient failure.",
	})); err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register download metric: %w", err)
	}
	return c, nil
}

// RecordProduce tracks one finished Produce call.
func (o *PrometheusObserver) RecordProduce(outcome, kind string, duration time.Duration) {
	if o == nil {
		return
	}
	o.produceDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	o.produceTotal.WithLabelValues(outcome, kind).Inc()
}

// RecordPage tracks one downloaded page.
func (o *PrometheusObserver) RecordPage(sizeBytes int64) {
	if o == nil {
		return
	}
	o.pagesTotal.Inc()
	o.pageBytes.Add(float64(sizeBytes))
}

// RecordRetry tracks one retried request.
func (o *PrometheusObserver) RecordRetry() {
	if o == nil {
		return
	}
	o.retries.Inc()
}

type nopObserver struct{}

func (nopObserver) RecordProduce(string, string, time.Duration) {}

func (nopObserver) RecordPage(int64) {}

func (nopObserver) RecordRetry() {}
