/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory_test

import (
	"context"
	"sync"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newIdentity(id network.AccountID) network.Identity {
	priv, _, err := network.GenerateKey()
	Expect(err).NotTo(HaveOccurred())
	return network.Identity{Account: id, PrivateKey: priv}
}

func publicKey(id network.Identity) string {
	pk, err := id.PublicKey()
	Expect(err).NotTo(HaveOccurred())
	return pk
}

func statusOf(err error) network.Status {
	Expect(err).To(HaveOccurred())
	s, ok := network.StatusOf(err)
	Expect(ok).To(BeTrue(), "expected a ledger status error, got %v", err)
	return s
}

var _ = Describe("Ledger", func() {
	var (
		ctx                        context.Context
		clock                      *fakeClock
		ledger                     *memory.Ledger
		treasury, alice, bob, carl network.Identity
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Unix(1_700_000_000, 0)}
		ledger = memory.New(
			memory.WithClock(clock.Now),
			memory.WithMirrorLag(2*time.Second),
			memory.WithRecordLag(time.Second),
		)
		treasury = newIdentity("0.0.5613562")
		alice = newIdentity("0.0.5613563")
		bob = newIdentity("0.0.5613564")
		carl = newIdentity("0.0.5613565")
		Expect(ledger.Genesis(100, treasury, alice, bob, carl)).To(Succeed())
	})

	createToken := func(spec network.TokenSpec) network.TokenID {
		receipt, err := ledger.CreateToken(ctx, treasury, spec, treasury)
		Expect(err).NotTo(HaveOccurred())
		Expect(receipt.TokenID).NotTo(BeEmpty())
		return receipt.TokenID
	}

	mintableToken := func(initial uint64) network.TokenID {
		key := network.SingleKey(publicKey(treasury))
		return createToken(network.TokenSpec{
			Name: "Test Token", Symbol: "HTT", Decimals: 2,
			InitialSupply: initial, SupplyType: network.InfiniteSupply,
			Treasury: treasury.Account, AdminKey: &key, SupplyKey: &key,
		})
	}

	associate := func(who network.Identity, tok network.TokenID) {
		_, err := ledger.AssociateToken(ctx, who, who.Account, []network.TokenID{tok}, who)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("fees", func() {
		It("charges the payer and keeps the charge in the record", func() {
			before, err := ledger.AccountBalance(ctx, treasury.Account)
			Expect(err).NotTo(HaveOccurred())

			receipt, err := ledger.CreateTopic(ctx, treasury, network.TopicSpec{Memo: "fees"})
			Expect(err).NotTo(HaveOccurred())

			after, err := ledger.AccountBalance(ctx, treasury.Account)
			Expect(err).NotTo(HaveOccurred())
			Expect(before.Tinybars - after.Tinybars).To(Equal(memory.DefaultFees.TopicCreate))

			_, err = ledger.Record(ctx, treasury, receipt.TransactionID)
			Expect(statusOf(err)).To(Equal(network.StatusRecordNotFound))

			clock.Advance(time.Second)
			record, err := ledger.Record(ctx, treasury, receipt.TransactionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Payer).To(Equal(treasury.Account))
			Expect(record.TransactionFee).To(Equal(memory.DefaultFees.TopicCreate))
		})

		It("rejects a payer that cannot afford the fee", func() {
			poor := newIdentity("0.0.9000")
			ledger.Fund(poor.Account, publicKey(poor), 10)
			_, err := ledger.CreateTopic(ctx, poor, network.TopicSpec{})
			Expect(statusOf(err)).To(Equal(network.StatusInsufficientPayerBalance))
		})

		It("rejects a payer signing with the wrong key", func() {
			impostor := network.Identity{Account: alice.Account, PrivateKey: bob.PrivateKey}
			_, err := ledger.CreateTopic(ctx, impostor, network.TopicSpec{})
			Expect(statusOf(err)).To(Equal(network.StatusInvalidSignature))
		})

		It("fails locally without a payer", func() {
			_, err := ledger.CreateTopic(ctx, network.Identity{}, network.TopicSpec{})
			Expect(err).To(MatchError(network.ErrNoPayer))
		})
	})

	Describe("topics", func() {
		It("increments the sequence number by exactly one per message", func() {
			key := network.SingleKey(publicKey(alice))
			receipt, err := ledger.CreateTopic(ctx, alice, network.TopicSpec{Memo: "Taxi rides", SubmitKey: &key})
			Expect(err).NotTo(HaveOccurred())
			topicID := receipt.TopicID

			for i := uint64(1); i <= 3; i++ {
				before, err := ledger.TopicInfo(ctx, alice, topicID)
				Expect(err).NotTo(HaveOccurred())
				r, err := ledger.SubmitMessage(ctx, alice, topicID, []byte("ride"), alice)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.TopicSequenceNumber).To(Equal(before.SequenceNumber + 1))
			}
			info, err := ledger.TopicInfo(ctx, alice, topicID)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.SequenceNumber).To(Equal(uint64(3)))
			Expect(info.Memo).To(Equal("Taxi rides"))
		})

		It("requires the submit key", func() {
			key := network.SingleKey(publicKey(alice))
			receipt, err := ledger.CreateTopic(ctx, alice, network.TopicSpec{SubmitKey: &key})
			Expect(err).NotTo(HaveOccurred())

			_, err = ledger.SubmitMessage(ctx, bob, receipt.TopicID, []byte("hello"), bob)
			Expect(statusOf(err)).To(Equal(network.StatusInvalidSignature))
		})

		It("accepts any k of n signatures for a threshold submit key", func() {
			key := network.ThresholdKey(2, publicKey(alice), publicKey(bob), publicKey(carl))
			receipt, err := ledger.CreateTopic(ctx, treasury, network.TopicSpec{SubmitKey: &key})
			Expect(err).NotTo(HaveOccurred())

			_, err = ledger.SubmitMessage(ctx, alice, receipt.TopicID, []byte("one"), alice)
			Expect(statusOf(err)).To(Equal(network.StatusInvalidSignature))

			_, err = ledger.SubmitMessage(ctx, alice, receipt.TopicID, []byte("two"), alice, carl)
			Expect(err).NotTo(HaveOccurred())
		})

		It("exposes messages through the mirror only after the lag", func() {
			receipt, err := ledger.CreateTopic(ctx, alice, network.TopicSpec{})
			Expect(err).NotTo(HaveOccurred())
			exists, err := ledger.TopicExists(ctx, receipt.TopicID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())

			_, err = ledger.SubmitMessage(ctx, alice, receipt.TopicID, []byte("hello"))
			Expect(err).NotTo(HaveOccurred())
			_, err = ledger.TopicMessage(ctx, receipt.TopicID, 1)
			Expect(err).To(MatchError(network.ErrNotFound))

			clock.Advance(2 * time.Second)
			msg, err := ledger.TopicMessage(ctx, receipt.TopicID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(msg.Contents)).To(Equal("hello"))
		})

		It("rejects unknown topics", func() {
			_, err := ledger.SubmitMessage(ctx, alice, "0.0.42", []byte("x"))
			Expect(statusOf(err)).To(Equal(network.StatusInvalidTopicID))
		})
	})

	Describe("tokens", func() {
		It("mints exactly the requested amount", func() {
			tok := mintableToken(0)
			receipt, err := ledger.MintToken(ctx, treasury, tok, 100, treasury)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.TotalSupply).To(Equal(uint64(100)))

			info, err := ledger.TokenInfo(ctx, treasury, tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.TotalSupply).To(Equal(uint64(100)))
			Expect(info.Name).To(Equal("Test Token"))
			Expect(info.Symbol).To(Equal("HTT"))
			Expect(info.Decimals).To(Equal(uint32(2)))
			Expect(info.Treasury).To(Equal(treasury.Account))
			Expect(ledger.ConsensusTokenBalance(treasury.Account, tok)).To(Equal(uint64(100)))
		})

		It("refuses to mint a fixed supply token without supply key", func() {
			admin := network.SingleKey(publicKey(treasury))
			tok := createToken(network.TokenSpec{
				Name: "Test Token", Symbol: "HTT", Decimals: 2,
				InitialSupply: 1000, MaxSupply: 1000, SupplyType: network.FiniteSupply,
				Treasury: treasury.Account, AdminKey: &admin,
			})
			_, err := ledger.MintToken(ctx, treasury, tok, 100, treasury)
			Expect(statusOf(err)).To(Equal(network.StatusTokenHasNoSupplyKey))

			info, err := ledger.TokenInfo(ctx, treasury, tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.TotalSupply).To(Equal(uint64(1000)))
			Expect(info.HasSupplyKey).To(BeFalse())
		})

		It("enforces the max supply", func() {
			key := network.SingleKey(publicKey(treasury))
			tok := createToken(network.TokenSpec{
				Name: "Capped", Symbol: "CAP", InitialSupply: 5, MaxSupply: 10,
				SupplyType: network.FiniteSupply, Treasury: treasury.Account, SupplyKey: &key,
			})
			_, err := ledger.MintToken(ctx, treasury, tok, 6, treasury)
			Expect(statusOf(err)).To(Equal(network.StatusTokenMaxSupplyReached))
			_, err = ledger.MintToken(ctx, treasury, tok, 5, treasury)
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires the treasury signature on creation", func() {
			_, err := ledger.CreateToken(ctx, alice, network.TokenSpec{
				Name: "Stolen", Symbol: "STL", Treasury: treasury.Account,
			})
			Expect(statusOf(err)).To(Equal(network.StatusInvalidSignature))
		})

		It("reports double association", func() {
			tok := mintableToken(0)
			associate(alice, tok)
			_, err := ledger.AssociateToken(ctx, alice, alice.Account, []network.TokenID{tok}, alice)
			Expect(statusOf(err)).To(Equal(network.StatusTokenAlreadyAssociatedToAccount))
		})
	})

	Describe("transfers", func() {
		var tok network.TokenID

		BeforeEach(func() {
			tok = mintableToken(1000)
			associate(alice, tok)
			associate(bob, tok)
			associate(carl, tok)
			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: treasury.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: treasury.Account, Amount: -200},
					{Token: tok, Account: alice.Account, Amount: 100},
					{Token: tok, Account: bob.Account, Amount: 100},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, treasury)
			Expect(err).NotTo(HaveOccurred())
		})

		It("applies every delta of a balanced multi-party transfer", func() {
			spec := network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -10},
					{Token: tok, Account: bob.Account, Amount: -10},
					{Token: tok, Account: carl.Account, Amount: 5},
					{Token: tok, Account: treasury.Account, Amount: 15},
				},
			}
			before := map[network.AccountID]uint64{}
			for _, leg := range spec.Transfers {
				before[leg.Account] = ledger.ConsensusTokenBalance(leg.Account, tok)
			}
			tx, err := ledger.NewTransfer(ctx, spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.Sign(alice)).To(Succeed())
			Expect(tx.Sign(bob)).To(Succeed())
			_, err = tx.Execute(ctx, alice)
			Expect(err).NotTo(HaveOccurred())

			var sum int64
			for _, leg := range spec.Transfers {
				sum += leg.Amount
				Expect(int64(ledger.ConsensusTokenBalance(leg.Account, tok))).To(Equal(int64(before[leg.Account]) + leg.Amount))
			}
			Expect(sum).To(BeZero())
		})

		It("requires every sender to sign", func() {
			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -10},
					{Token: tok, Account: bob.Account, Amount: -10},
					{Token: tok, Account: carl.Account, Amount: 20},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusInvalidSignature))
			Expect(ledger.ConsensusTokenBalance(carl.Account, tok)).To(BeZero())
		})

		It("rejects a second execution", func() {
			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -1},
					{Token: tok, Account: bob.Account, Amount: 1},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusDuplicateTransaction))
		})

		It("rejects overdrafts and unassociated receivers", func() {
			dave := newIdentity("0.0.5613566")
			ledger.Fund(dave.Account, publicKey(dave), network.HbarToTinybars(10))

			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -1},
					{Token: tok, Account: dave.Account, Amount: 1},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusTokenNotAssociatedToAccount))

			tx, err = ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -101},
					{Token: tok, Account: bob.Account, Amount: 101},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusInsufficientTokenBalance))
		})

		It("lets another account submit a transaction the payer signed", func() {
			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: bob.Account, Amount: -10},
					{Token: tok, Account: alice.Account, Amount: 10},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.Sign(bob)).To(Succeed())
			Expect(tx.Sign(alice)).To(Succeed())
			receipt, err := tx.Execute(ctx, bob)
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(time.Second)
			record, err := ledger.Record(ctx, bob, receipt.TransactionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Payer).To(Equal(alice.Account))
			Expect(record.TransactionFee).To(BeNumerically(">", 0))
		})

		It("rejects unknown nodes and expired transactions", func() {
			tx, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Nodes: []network.AccountID{"0.0.99"},
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -1},
					{Token: tok, Account: bob.Account, Amount: 1},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusInvalidNodeAccount))

			tx, err = ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -1},
					{Token: tok, Account: bob.Account, Amount: 1},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			clock.Advance(network.DefaultValidDuration + time.Second)
			_, err = tx.Execute(ctx, alice)
			Expect(statusOf(err)).To(Equal(network.StatusTransactionExpired))
		})

		It("shows balances on the mirror after the lag", func() {
			b, err := ledger.TokenBalance(ctx, alice.Account, tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(BeZero())

			clock.Advance(2 * time.Second)
			b, err = ledger.TokenBalance(ctx, alice.Account, tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(uint64(100)))
		})

		It("refuses unbalanced transfers before they reach the ledger", func() {
			_, err := ledger.NewTransfer(ctx, network.TransferSpec{
				Payer: alice.Account,
				Transfers: []network.TokenTransfer{
					{Token: tok, Account: alice.Account, Amount: -10},
					{Token: tok, Account: bob.Account, Amount: 9},
				},
			})
			Expect(err).To(MatchError(ContainSubstring("sum to -1")))
		})
	})

	Describe("accounts", func() {
		It("creates funded accounts controlled by the given key", func() {
			priv, pub, err := network.GenerateKey()
			Expect(err).NotTo(HaveOccurred())
			receipt, err := ledger.CreateAccount(ctx, treasury, network.AccountSpec{
				Key:             network.SingleKey(pub),
				InitialTinybars: network.HbarToTinybars(10),
			})
			Expect(err).NotTo(HaveOccurred())

			b, err := ledger.AccountBalance(ctx, receipt.AccountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Hbars()).To(Equal(10.0))

			created := network.Identity{Account: receipt.AccountID, PrivateKey: priv}
			_, err = ledger.CreateTopic(ctx, created, network.TopicSpec{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("only burns fees", func() {
			total := ledger.TotalTinybars()
			_, err := ledger.CreateTopic(ctx, alice, network.TopicSpec{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.TotalTinybars()).To(Equal(total - memory.DefaultFees.TopicCreate))
		})
	})
})
