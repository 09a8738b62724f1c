/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package runner executes the feature files against the configured network and reports on the
// transactions they caused.
package runner

import (
	"context"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/cucumber/godog"
	"github.com/ledger-labs/hedera-scenarios/integration/steps"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/config"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/journal"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/metrics"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/tracing"
	"github.com/pkg/errors"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/http_server"
)

var logger = logging.MustGetLogger()

// Options select which scenarios run and how their progress is printed.
type Options struct {
	Paths       []string
	FS          fs.FS
	Tags        string
	Format      string
	Concurrency int
	Strict      bool
	NoColors    bool
	Output      io.Writer
	// MetricsAddress overrides the configured metrics endpoint.
	MetricsAddress string
}

// Result is the outcome of a run.
type Result struct {
	RunID RunID
	// Status is the godog exit status: 0 when every scenario passed.
	Status  int
	Summary string
	Totals  *journal.Totals
}

// SuiteRunner runs the step library over a set of feature files.
type SuiteRunner struct {
	cfg     *config.Configuration
	library *steps.Library
	metrics *metrics.Metrics
	journal *journal.Store
	backend *Backend
	runID   RunID
}

func NewSuiteRunner(cfg *config.Configuration, library *steps.Library, m *metrics.Metrics, j *journal.Store, b *Backend, runID RunID) *SuiteRunner {
	return &SuiteRunner{
		cfg:     cfg,
		library: library,
		metrics: m,
		journal: j,
		backend: b,
		runID:   runID,
	}
}

func (r *SuiteRunner) Run(ctx context.Context, opts Options) (*Result, error) {
	logger.Infof("========================== Start run %s ==========================", r.runID)
	shutdownTracing, err := tracing.Setup(ctx, r.cfg.Tracing.File, string(r.runID))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warnf("failed flushing spans: %v", err)
		}
	}()

	address := r.cfg.Metrics.Address
	if len(opts.MetricsAddress) != 0 {
		address = opts.MetricsAddress
	}
	if len(address) != 0 {
		stop, err := r.serveMetrics(address)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	paths := opts.Paths
	switch {
	case len(paths) != 0:
	case opts.FS != nil:
		paths = []string{"."}
	default:
		paths = []string{"features"}
	}
	format := opts.Format
	if len(format) == 0 {
		format = "pretty"
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	suite := godog.TestSuite{
		Name:                "hscenarios",
		ScenarioInitializer: r.library.With(steps.WithOutput(output)).InitializeScenario,
		Options: &godog.Options{
			Format:         format,
			Paths:          paths,
			FS:             opts.FS,
			Tags:           opts.Tags,
			Concurrency:    opts.Concurrency,
			Strict:         opts.Strict,
			NoColors:       opts.NoColors,
			Output:         output,
			// steps and scenario hooks derive their contexts from the run
			DefaultContext: ctx,
		},
	}
	result := &Result{RunID: r.runID, Status: suite.Run()}
	logger.Infof("========================== End run %s, status %d ==========================", r.runID, result.Status)

	result.Summary = r.metrics.Summary()
	logger.Infof("run summary:\n%s", result.Summary)
	if r.journal != nil {
		totals, err := r.journal.Totals(context.Background(), string(r.runID))
		if err != nil {
			return result, err
		}
		result.Totals = &totals
		logger.Infof("journal holds %d entries for run %s, %d failed, %d tinybars in fees", totals.Entries, r.runID, totals.Failures, totals.Fees)
	}
	return result, nil
}

// serveMetrics starts the Prometheus endpoint and returns the function stopping it.
func (r *SuiteRunner) serveMetrics(address string) (func(), error) {
	members := grouper.Members{
		{Name: "metrics", Runner: http_server.New(address, r.metrics.Handler())},
	}
	process := ifrit.Invoke(grouper.NewOrdered(syscall.SIGTERM, members))
	select {
	case <-process.Ready():
	case err := <-process.Wait():
		return nil, errors.Wrapf(err, "metrics endpoint on [%s] failed to start", address)
	}
	logger.Infof("serving metrics on [%s]", address)
	return func() {
		process.Signal(syscall.SIGTERM)
		if err := <-process.Wait(); err != nil {
			logger.Warnf("metrics endpoint stopped: %v", err)
		}
	}, nil
}

// Close releases the network connection and the journal.
func (r *SuiteRunner) Close() error {
	var errs []error
	if err := r.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return errors.Errorf("failed closing runner: %v", errs)
	}
	return nil
}

// Build wires a SuiteRunner from cfg.
func Build(cfg *config.Configuration) (*SuiteRunner, error) {
	c, err := NewContainer(cfg)
	if err != nil {
		return nil, err
	}
	var r *SuiteRunner
	if err := c.Invoke(func(sr *SuiteRunner) { r = sr }); err != nil {
		return nil, errors.Wrap(err, "failed wiring the suite")
	}
	return r, nil
}
