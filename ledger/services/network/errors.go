/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is the ledger's response code, spelled as the network spells it.
type Status string

const (
	StatusSuccess                         Status = "SUCCESS"
	StatusInvalidSignature                Status = "INVALID_SIGNATURE"
	StatusInsufficientPayerBalance        Status = "INSUFFICIENT_PAYER_BALANCE"
	StatusInvalidAccountID                Status = "INVALID_ACCOUNT_ID"
	StatusInvalidTopicID                  Status = "INVALID_TOPIC_ID"
	StatusInvalidTokenID                  Status = "INVALID_TOKEN_ID"
	StatusTokenHasNoSupplyKey             Status = "TOKEN_HAS_NO_SUPPLY_KEY"
	StatusTokenMaxSupplyReached           Status = "TOKEN_MAX_SUPPLY_REACHED"
	StatusTokenNotAssociatedToAccount     Status = "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT"
	StatusTokenAlreadyAssociatedToAccount Status = "TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT"
	StatusInsufficientTokenBalance        Status = "INSUFFICIENT_TOKEN_BALANCE"
	StatusTransfersNotZeroSumForToken     Status = "TRANSFERS_NOT_ZERO_SUM_FOR_TOKEN"
	StatusDuplicateTransaction            Status = "DUPLICATE_TRANSACTION"
	StatusRecordNotFound                  Status = "RECORD_NOT_FOUND"
	StatusInvalidNodeAccount              Status = "INVALID_NODE_ACCOUNT"
	StatusPayerAccountNotFound            Status = "PAYER_ACCOUNT_NOT_FOUND"
	StatusTransactionExpired              Status = "TRANSACTION_EXPIRED"
	StatusMissingTokenName                Status = "MISSING_TOKEN_NAME"
	StatusMissingTokenSymbol              Status = "MISSING_TOKEN_SYMBOL"
	StatusInvalidTokenMaxSupply           Status = "INVALID_TOKEN_MAX_SUPPLY"
	StatusInvalidTokenInitialSupply       Status = "INVALID_TOKEN_INITIAL_SUPPLY"
	StatusInvalidTreasuryAccount          Status = "INVALID_TREASURY_ACCOUNT_FOR_TOKEN"
	StatusBadEncoding                     Status = "BAD_ENCODING"
	StatusInvalidTopicMessage             Status = "INVALID_TOPIC_MESSAGE"
)

// StatusError reports a transaction or query the ledger rejected.
type StatusError struct {
	TransactionID TransactionID
	Status        Status
}

func (e *StatusError) Error() string {
	if len(e.TransactionID) == 0 {
		return fmt.Sprintf("ledger rejected the request with status %s", e.Status)
	}
	return fmt.Sprintf("transaction %s failed with status %s", e.TransactionID, e.Status)
}

func NewStatusError(tx TransactionID, status Status) error {
	return &StatusError{TransactionID: tx, Status: status}
}

// StatusOf extracts the ledger status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return "", false
}

// ErrNotFound is returned by mirror reads for entities the mirror has not seen yet.
var ErrNotFound = errors.New("not found")
