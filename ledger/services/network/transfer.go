/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"time"

	"github.com/pkg/errors"
)

const DefaultValidDuration = 120 * time.Second

// TokenTransfer is one signed leg of a token transfer.
type TokenTransfer struct {
	Token   TokenID
	Account AccountID
	Amount  int64
}

// TransferSpec describes a transfer transaction before it is frozen.
type TransferSpec struct {
	Payer         AccountID
	Transfers     []TokenTransfer
	Nodes         []AccountID
	ValidDuration time.Duration
	Memo          string
}

// Validate checks that each token's legs sum to zero and that every leg moves something.
func (s TransferSpec) Validate() error {
	if len(s.Payer) == 0 {
		return ErrNoPayer
	}
	if len(s.Transfers) < 2 {
		return errors.Errorf("a transfer needs at least two legs, got %d", len(s.Transfers))
	}
	sums := map[TokenID]int64{}
	for _, t := range s.Transfers {
		if len(t.Token) == 0 || len(t.Account) == 0 {
			return errors.Errorf("incomplete transfer leg [%+v]", t)
		}
		if t.Amount == 0 {
			return errors.Errorf("zero amount for account [%s]", t.Account)
		}
		sums[t.Token] += t.Amount
	}
	for token, sum := range sums {
		if sum != 0 {
			return errors.Errorf("transfers of token [%s] sum to %d instead of zero", token, sum)
		}
	}
	return nil
}

// Senders returns the accounts whose balance decreases; each of them must sign.
func (s TransferSpec) Senders() []AccountID {
	var out []AccountID
	seen := map[AccountID]struct{}{}
	for _, t := range s.Transfers {
		if t.Amount >= 0 {
			continue
		}
		if _, ok := seen[t.Account]; ok {
			continue
		}
		seen[t.Account] = struct{}{}
		out = append(out, t.Account)
	}
	return out
}

// Delta returns the net change the transfer applies to account for token.
func (s TransferSpec) Delta(account AccountID, token TokenID) int64 {
	var d int64
	for _, t := range s.Transfers {
		if t.Account == account && t.Token == token {
			d += t.Amount
		}
	}
	return d
}

// WithDefaults fills the node list and valid duration when unset.
func (s TransferSpec) WithDefaults() TransferSpec {
	if len(s.Nodes) == 0 {
		s.Nodes = []AccountID{DefaultNode}
	}
	if s.ValidDuration == 0 {
		s.ValidDuration = DefaultValidDuration
	}
	return s
}
