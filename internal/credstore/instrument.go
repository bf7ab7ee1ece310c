package credstore

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/semmy-space/credstore/internal/secrets"
)

// Outcome label values.
const (
	OutcomeOK                = "ok"
	OutcomeNotFound          = "not_found"
	OutcomeInvalidArgument   = "invalid_argument"
	OutcomeNativeFailure     = "native_failure"
	OutcomeContractViolation = "contract_violation"
	OutcomeError             = "error"
)

// Metrics are the store operation collectors.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstore_operations_total",
				Help: "Total number of credential store operations",
			},
			[]string{"backend", "op", "outcome"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credstore_operation_duration_seconds",
				Help:    "Duration of credential store operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "op"},
		),
	}
}

type instrumented struct {
	next    secrets.Store
	backend string
	metrics *Metrics
	log     *slog.Logger
}

// Instrument wraps store so every call is counted, timed and logged at debug
// level. Secrets never reach the log.
func Instrument(store secrets.Store, backend string, metrics *Metrics, log *slog.Logger) secrets.Store {
	if log == nil {
		log = secrets.Options{}.Log()
	}
	return &instrumented{next: store, backend: backend, metrics: metrics, log: log}
}

func (s *instrumented) observe(op, service, account string, start time.Time, outcome string, err error) {
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(s.backend, op, outcome).Inc()
		s.metrics.Duration.WithLabelValues(s.backend, op).Observe(elapsed.Seconds())
	}
	attrs := []any{"backend", s.backend, "service", service, "account", account, "outcome", outcome, "elapsed", elapsed}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.log.Debug("credential store "+op, attrs...)
}

func (s *instrumented) Get(service, account string) (*secrets.Credential, error) {
	start := time.Now()
	cred, err := s.next.Get(service, account)
	outcome := outcomeOf(err)
	if err == nil && cred == nil {
		outcome = OutcomeNotFound
	}
	s.observe(secrets.OpGet, service, account, start, outcome, err)
	return cred, err
}

func (s *instrumented) AddOrUpdate(service, account string, secret []byte) error {
	start := time.Now()
	err := s.next.AddOrUpdate(service, account, secret)
	s.observe(secrets.OpAddOrUpdate, service, account, start, outcomeOf(err), err)
	return err
}

func (s *instrumented) Remove(service, account string) (bool, error) {
	start := time.Now()
	removed, err := s.next.Remove(service, account)
	outcome := outcomeOf(err)
	if err == nil && !removed {
		outcome = OutcomeNotFound
	}
	s.observe(secrets.OpRemove, service, account, start, outcome, err)
	return removed, err
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch secrets.KindOf(err) {
	case secrets.InvalidArgument:
		return OutcomeInvalidArgument
	case secrets.NativeFailure:
		return OutcomeNativeFailure
	case secrets.ContractViolation:
		return OutcomeContractViolation
	}
	return OutcomeError
}

// WriteMetrics writes every metric in g to path in the Prometheus text
// format, for the node_exporter textfile collector.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
