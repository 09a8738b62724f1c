/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"context"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

// ErrMissingState is returned when a step reads state that no earlier step established.
var ErrMissingState = errors.New("missing scenario state")

func missing(what, setBy string) error {
	return errors.Wrapf(ErrMissingState, "%s is not set, run [%s] first", what, setBy)
}

// publication is a message submitted to the scenario topic.
type publication struct {
	receipt        network.Receipt
	contents       []byte
	sequenceBefore uint64
}

// expectation is the balance a transfer left an account with, checked against the mirror once
// the scenario ends.
type expectation struct {
	account network.AccountID
	token   network.TokenID
	balance uint64
}

// State is the record a scenario threads between its steps. Fields stay nil until the step that
// establishes them has run.
type State struct {
	Scenario string

	Treasury *network.Identity
	First    *network.Identity
	Second   *network.Identity
	Third    *network.Identity
	Fourth   *network.Identity

	ThresholdKey *network.Key
	Topic        *network.TopicID
	Token        *network.TokenID

	// Pending is the transfer built but not yet submitted.
	Pending network.PendingTransaction
	// LastTransfer is the receipt of the last executed transfer.
	LastTransfer *network.Receipt

	submitters  []network.Identity
	published   *publication
	holdings    map[network.AccountID]uint64
	expected    []expectation
	transferred bool
}

func newState(scenario string) *State {
	return &State{
		Scenario: scenario,
		holdings: map[network.AccountID]uint64{},
	}
}

type stateKey struct{}

func withState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// StateOf returns the state of the scenario running under ctx.
func StateOf(ctx context.Context) (*State, error) {
	s, ok := ctx.Value(stateKey{}).(*State)
	if !ok || s == nil {
		return nil, errors.Wrap(ErrMissingState, "no scenario is running")
	}
	return s, nil
}

func (s *State) treasury() (network.Identity, error) {
	if s.Treasury == nil {
		return network.Identity{}, missing("treasury account", "A Hedera account with more than N hbar")
	}
	return *s.Treasury, nil
}

func (s *State) first() (network.Identity, error) {
	if s.First == nil {
		return network.Identity{}, missing("first account", "a first account with more than N hbars")
	}
	return *s.First, nil
}

func (s *State) second() (network.Identity, error) {
	if s.Second == nil {
		return network.Identity{}, missing("second account", "A second account with more than N hbars")
	}
	return *s.Second, nil
}

func (s *State) topic() (network.TopicID, error) {
	if s.Topic == nil {
		return "", missing("topic", "A topic is created with the memo ...")
	}
	return *s.Topic, nil
}

func (s *State) token() (network.TokenID, error) {
	if s.Token == nil {
		return "", missing("token", "I create a token named Test Token (HTT)")
	}
	return *s.Token, nil
}

func (s *State) pending() (network.PendingTransaction, error) {
	if s.Pending == nil {
		return nil, missing("pending transfer", "The first account creates a transaction ...")
	}
	return s.Pending, nil
}

func (s *State) lastTransfer() (network.Receipt, error) {
	if s.LastTransfer == nil {
		return network.Receipt{}, missing("executed transfer", "The first account submits the transaction")
	}
	return *s.LastTransfer, nil
}

// actor returns the identity bound to an ordinal used in step text.
func (s *State) actor(ordinal string) (network.Identity, error) {
	var id *network.Identity
	switch ordinal {
	case "first":
		return s.first()
	case "second":
		return s.second()
	case "third":
		id = s.Third
	case "fourth":
		id = s.Fourth
	default:
		return network.Identity{}, errors.Errorf("unknown account ordinal [%s]", ordinal)
	}
	if id == nil {
		return network.Identity{}, missing(ordinal+" account", "A "+ordinal+" Hedera account with N hbar and M HTT tokens")
	}
	return *id, nil
}

func (s *State) bind(ordinal string, id network.Identity) error {
	switch ordinal {
	case "first":
		s.First = &id
	case "second":
		s.Second = &id
	case "third":
		s.Third = &id
	case "fourth":
		s.Fourth = &id
	default:
		return errors.Errorf("unknown account ordinal [%s]", ordinal)
	}
	return nil
}

// payer is the identity paying for queries: the treasury in token scenarios, else the first
// account.
func (s *State) payer() (network.Identity, error) {
	if s.Treasury != nil {
		return *s.Treasury, nil
	}
	if s.First != nil {
		return *s.First, nil
	}
	return network.Identity{}, missing("paying account", "A Hedera account with more than N hbar")
}
