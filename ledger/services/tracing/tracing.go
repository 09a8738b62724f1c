/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package tracing installs the global tracer provider used by the ledger decorators.
package tracing

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "hscenarios"

// Setup exports spans as JSON lines to file. An empty file leaves the no-op provider in place.
// The returned function flushes pending spans and closes the file.
func Setup(ctx context.Context, file string, runID string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if len(file) == 0 {
		return noop, nil
	}
	f, err := os.Create(file)
	if err != nil {
		return noop, errors.Wrapf(err, "failed creating trace file [%s]", file)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return noop, errors.Wrap(err, "failed creating span exporter")
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", ServiceName),
		attribute.String("hsc.run_id", runID),
	))
	if err != nil {
		_ = f.Close()
		return noop, errors.Wrap(err, "failed creating trace resource")
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
