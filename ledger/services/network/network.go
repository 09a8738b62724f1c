/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package network defines the ledger operations the scenario steps are written against.
// Every paid operation names its payer explicitly; implementations never rely on a shared,
// mutable operator.
package network

import (
	"context"
	"time"
)

// Ledger is the consensus side of the network: transactions and paid queries.
type Ledger interface {
	// AccountBalance returns the hbar balance of the given account. The query is free.
	AccountBalance(ctx context.Context, account AccountID) (Balance, error)
	// CreateAccount creates a new account controlled by the given key, funded by payer.
	CreateAccount(ctx context.Context, payer Identity, spec AccountSpec) (Receipt, error)
	// CreateTopic creates a consensus topic. Signers are added to the payer's signature.
	CreateTopic(ctx context.Context, payer Identity, spec TopicSpec, signers ...Identity) (Receipt, error)
	// SubmitMessage publishes a message to a topic. Signers must satisfy the topic submit key.
	SubmitMessage(ctx context.Context, payer Identity, topic TopicID, message []byte, signers ...Identity) (Receipt, error)
	// TopicInfo queries the current state of a topic.
	TopicInfo(ctx context.Context, payer Identity, topic TopicID) (TopicInfo, error)
	// CreateToken creates a fungible token. Signers must include treasury and admin keys.
	CreateToken(ctx context.Context, payer Identity, spec TokenSpec, signers ...Identity) (Receipt, error)
	// MintToken adds amount to the total supply, crediting the treasury.
	MintToken(ctx context.Context, payer Identity, token TokenID, amount uint64, signers ...Identity) (Receipt, error)
	// TokenInfo queries the current state of a token.
	TokenInfo(ctx context.Context, payer Identity, token TokenID) (TokenInfo, error)
	// AssociateToken associates the tokens with account so that it can hold them.
	AssociateToken(ctx context.Context, payer Identity, account AccountID, tokens []TokenID, signers ...Identity) (Receipt, error)
	// NewTransfer builds a frozen, unsigned token transfer.
	NewTransfer(ctx context.Context, spec TransferSpec) (PendingTransaction, error)
	// Record fetches the record of a previously executed transaction.
	Record(ctx context.Context, payer Identity, tx TransactionID) (Record, error)
}

// PendingTransaction is a frozen transaction waiting for signatures and submission.
type PendingTransaction interface {
	ID() TransactionID
	Spec() TransferSpec
	// Sign adds the signature of the given identity.
	Sign(signer Identity) error
	// Signers returns the public keys that signed so far.
	Signers() []string
	// Execute submits the transaction through submitter's connection and waits for its receipt.
	Execute(ctx context.Context, submitter Identity) (Receipt, error)
}

// Mirror is the eventually consistent read side of the network.
type Mirror interface {
	// TokenBalance returns the balance of token held by account. Unassociated accounts hold 0.
	TokenBalance(ctx context.Context, account AccountID, token TokenID) (uint64, error)
	// TopicMessage returns the message with the given sequence number, or ErrNotFound.
	TopicMessage(ctx context.Context, topic TopicID, sequence uint64) (Message, error)
	// TopicExists reports whether the mirror already knows the topic.
	TopicExists(ctx context.Context, topic TopicID) (bool, error)
}

type (
	AccountID     string
	TokenID       string
	TopicID       string
	TransactionID string
)

// DefaultNode is the consensus node pre-built transactions are pinned to.
const DefaultNode AccountID = "0.0.3"

const tinybarsPerHbar = 100_000_000

// Balance is an hbar balance expressed in tinybars.
type Balance struct {
	Account  AccountID
	Tinybars int64
}

// Hbars returns the balance in whole hbars.
func (b Balance) Hbars() float64 {
	return float64(b.Tinybars) / tinybarsPerHbar
}

// HbarToTinybars converts whole hbars into tinybars.
func HbarToTinybars(h int64) int64 {
	return h * tinybarsPerHbar
}

type AccountSpec struct {
	Key             Key
	InitialTinybars int64
}

type TopicSpec struct {
	Memo      string
	SubmitKey *Key
	AdminKey  *Key
}

type TopicInfo struct {
	ID             TopicID
	Memo           string
	SequenceNumber uint64
	SubmitKey      *Key
}

type SupplyType int

const (
	InfiniteSupply SupplyType = iota
	FiniteSupply
)

func (s SupplyType) String() string {
	if s == FiniteSupply {
		return "FINITE"
	}
	return "INFINITE"
}

type TokenSpec struct {
	Name          string
	Symbol        string
	Decimals      uint32
	InitialSupply uint64
	MaxSupply     int64
	SupplyType    SupplyType
	Treasury      AccountID
	AdminKey      *Key
	SupplyKey     *Key
}

type TokenInfo struct {
	ID           TokenID
	Name         string
	Symbol       string
	Decimals     uint32
	TotalSupply  uint64
	MaxSupply    int64
	SupplyType   SupplyType
	Treasury     AccountID
	HasSupplyKey bool
}

// Receipt confirms that a transaction reached consensus.
type Receipt struct {
	TransactionID       TransactionID
	Status              Status
	AccountID           AccountID
	TopicID             TopicID
	TokenID             TokenID
	TopicSequenceNumber uint64
	TotalSupply         uint64
}

// Record is the detailed outcome of a transaction, including the fee charged to its payer.
type Record struct {
	Receipt            Receipt
	Payer              AccountID
	TransactionFee     int64
	ConsensusTimestamp time.Time
}

// Message is a topic message as seen by the mirror.
type Message struct {
	Topic              TopicID
	SequenceNumber     uint64
	Contents           []byte
	ConsensusTimestamp time.Time
}
