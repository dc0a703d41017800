// Package metrics defines the Prometheus collectors for the notarization
// worker and exposes an HTTP handler for scraping.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the worker.
type Metrics struct {
	DocumentsProcessedTotal *prometheus.CounterVec
	ConfirmationWaitSeconds prometheus.Histogram
	RetriesTotal            *prometheus.CounterVec
	CertificatesIssuedTotal prometheus.Counter
	JobsConsumedTotal       *prometheus.CounterVec
}

// New creates and registers all worker metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		DocumentsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notary_documents_processed_total",
				Help: "Documents processed by kind and outcome (on_chain, error, skipped).",
			},
			[]string{"kind", "outcome"},
		),
		ConfirmationWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notary_confirmation_wait_seconds",
				Help:    "Wall-clock time spent waiting for transaction confirmations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notary_retries_total",
				Help: "Retry attempts by operation (submit, confirm).",
			},
			[]string{"operation"},
		),
		CertificatesIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notary_certificates_issued_total",
				Help: "Certificate pairs (JSON + PDF) issued.",
			},
		),
		JobsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notary_jobs_consumed_total",
				Help: "Notarization jobs consumed by result (ok, failed, invalid).",
			},
			[]string{"result"},
		),
	}

	prometheus.MustRegister(
		m.DocumentsProcessedTotal,
		m.ConfirmationWaitSeconds,
		m.RetriesTotal,
		m.CertificatesIssuedTotal,
		m.JobsConsumedTotal,
	)

	return m
}

// Serve runs the scrape endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
