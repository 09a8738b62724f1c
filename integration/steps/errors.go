/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"fmt"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

// AssertionError reports an observed value that differs from the one the scenario expects.
type AssertionError struct {
	What     string
	Expected interface{}
	Actual   interface{}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.What, e.Expected, e.Actual)
}

func assertEqual[T comparable](what string, expected, actual T) error {
	if expected != actual {
		return &AssertionError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}

// expectFailure runs op and succeeds only if the ledger rejects it with status.
func expectFailure(status network.Status, op func() error) error {
	err := op()
	if err == nil {
		return &AssertionError{What: "ledger outcome", Expected: "rejection with " + string(status), Actual: network.StatusSuccess}
	}
	got, ok := network.StatusOf(err)
	if !ok {
		return errors.Wrapf(err, "expected rejection with [%s], operation failed without a ledger status", status)
	}
	if got != status {
		return &AssertionError{What: "ledger status", Expected: status, Actual: got}
	}
	logger.Debugf("operation rejected as expected with [%s]", status)
	return nil
}

// tolerate treats a rejection with one of the given statuses as success.
func tolerate(err error, statuses ...network.Status) error {
	if err == nil {
		return nil
	}
	got, ok := network.StatusOf(err)
	if !ok {
		return err
	}
	for _, s := range statuses {
		if got == s {
			return nil
		}
	}
	return err
}
