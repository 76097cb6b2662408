// Package cvmetrics instruments a [cvstore.ValueStore] with prometheus metrics
// and serves them over HTTP.
package cvmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "gadapter"
	subsystem = "cvstore"
)

// Store records the duration and outcome of every call to an inner ValueStore.
type Store struct {
	inner cvstore.ValueStore

	durations *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	maxHeight prometheus.Gauge

	mu      sync.Mutex
	seenMax bool
	max     cvconsensus.Height
}

var _ cvstore.ValueStore = (*Store)(nil)

// NewStore returns a Store wrapping inner, registering its collectors with reg.
func NewStore(inner cvstore.ValueStore, reg prometheus.Registerer) (*Store, error) {
	s := &Store{
		inner: inner,

		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of consensus value store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_errors_total",
			Help:      "Number of consensus value store operations that returned an error.",
		}, []string{"op"}),

		maxHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "max_decided_height",
			Help:      "Highest decided height observed through the store.",
		}),
	}

	for _, c := range []prometheus.Collector{s.durations, s.errors, s.maxHeight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register store metrics: %w", err)
		}
	}

	return s, nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.errors.WithLabelValues(op).Inc()
	}
}

func (s *Store) noteHeight(h cvconsensus.Height) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenMax && h <= s.max {
		return
	}
	s.seenMax, s.max = true, h
	s.maxHeight.Set(float64(h))
}

func (s *Store) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	start := time.Now()
	h, ok, err := s.inner.MaxDecidedValueHeight(ctx)
	s.observe("MaxDecidedValueHeight", start, err)
	if ok && err == nil {
		s.noteHeight(h)
	}
	return h, ok, err
}

func (s *Store) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	start := time.Now()
	dv, ok, err := s.inner.LoadDecidedValue(ctx, h)
	s.observe("LoadDecidedValue", start, err)
	return dv, ok, err
}

func (s *Store) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	start := time.Now()
	err := s.inner.SaveDecidedValue(ctx, cert, v)
	s.observe("SaveDecidedValue", start, err)
	if err == nil {
		s.noteHeight(cert.Height)
	}
	return err
}

func (s *Store) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	start := time.Now()
	pvs, err := s.inner.LoadUndecidedProposals(ctx, h, r)
	s.observe("LoadUndecidedProposals", start, err)
	return pvs, err
}

func (s *Store) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	start := time.Now()
	err := s.inner.SaveUndecidedProposal(ctx, pv)
	s.observe("SaveUndecidedProposal", start, err)
	return err
}

func (s *Store) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	start := time.Now()
	pv, ok, err := s.inner.LoadUndecidedProposal(ctx, h, r, id)
	s.observe("LoadUndecidedProposal", start, err)
	return pv, ok, err
}

func (s *Store) VerifyTables(ctx context.Context) error {
	start := time.Now()
	err := s.inner.VerifyTables(ctx)
	s.observe("VerifyTables", start, err)
	return err
}
