/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics counts and times the transactions and steps of a run.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

var logger = logging.MustGetLogger()

const (
	namespace = "hsc"

	KindLabel   = "kind"
	StatusLabel = "status"
)

type Metrics struct {
	gatherer     prometheus.Gatherer
	transactions *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	fees         *prometheus.CounterVec
	steps        *prometheus.CounterVec
	scenarios    *prometheus.CounterVec
}

// New registers the run metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers on r. Collectors already present on r are reused.
func NewWithRegistry(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	return &Metrics{
		gatherer: g,
		transactions: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions and paid queries submitted, by kind and final status.",
		}, []string{KindLabel, StatusLabel})),
		durations: register(r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time from submission to receipt, by kind.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 8, 13},
		}, []string{KindLabel})),
		fees: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_tinybars_total",
			Help:      "Fees charged, by kind. Only known once the record is read.",
		}, []string{KindLabel})),
		steps: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by result.",
		}, []string{StatusLabel})),
		scenarios: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Executed scenarios by result.",
		}, []string{StatusLabel})),
	}
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) C {
	if err := r.Register(c); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			logger.Warnf("reusing already registered collector: %v", err)
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveTransaction(kind, status string, d time.Duration) {
	m.transactions.WithLabelValues(kind, status).Inc()
	m.durations.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveFee(kind string, tinybars int64) {
	if tinybars > 0 {
		m.fees.WithLabelValues(kind).Add(float64(tinybars))
	}
}

func (m *Metrics) ObserveStep(status string) {
	m.steps.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveScenario(status string) {
	m.scenarios.WithLabelValues(status).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteText dumps every metric family in the text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.gatherer.Gather()
	if err != nil {
		return errors.Wrap(err, "failed gathering metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "failed writing metric family [%s]", mf.GetName())
		}
	}
	return nil
}

type kindStats struct {
	total, success float64
	seconds        float64
	fees           float64
}

// Summary renders one line per transaction kind: count, success ratio, mean duration and fees.
func (m *Metrics) Summary() string {
	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Sprintf("metrics unavailable: %v", err)
	}
	stats := map[string]*kindStats{}
	get := func(kind string) *kindStats {
		if s, ok := stats[kind]; ok {
			return s
		}
		s := &kindStats{}
		stats[kind] = s
		return s
	}
	var steps, scenarios []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			switch mf.GetName() {
			case namespace + "_transactions_total":
				s := get(labels[KindLabel])
				s.total += metric.GetCounter().GetValue()
				if labels[StatusLabel] == "SUCCESS" {
					s.success += metric.GetCounter().GetValue()
				}
			case namespace + "_transaction_duration_seconds":
				get(labels[KindLabel]).seconds += metric.GetHistogram().GetSampleSum()
			case namespace + "_fees_tinybars_total":
				get(labels[KindLabel]).fees += metric.GetCounter().GetValue()
			case namespace + "_steps_total":
				steps = append(steps, fmt.Sprintf("%s=%d", labels[StatusLabel], int(metric.GetCounter().GetValue())))
			case namespace + "_scenarios_total":
				scenarios = append(scenarios, fmt.Sprintf("%s=%d", labels[StatusLabel], int(metric.GetCounter().GetValue())))
			}
		}
	}

	kinds := make([]string, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	b := strings.Builder{}
	for _, k := range kinds {
		s := stats[k]
		if s.total == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("%-22s %4d requests, success ratio %.2f%%, average %v, fees %d tinybars\n",
			k, int(s.total), s.success/s.total*100,
			(time.Duration(s.seconds / s.total * float64(time.Second))).Round(time.Millisecond),
			int64(s.fees)))
	}
	sort.Strings(steps)
	sort.Strings(scenarios)
	if len(scenarios) > 0 {
		b.WriteString("scenarios: " + strings.Join(scenarios, " ") + "\n")
	}
	if len(steps) > 0 {
		b.WriteString("steps: " + strings.Join(steps, " ") + "\n")
	}
	return b.String()
}
