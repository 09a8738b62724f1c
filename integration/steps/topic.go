/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/poll"
	"github.com/pkg/errors"
)

func (l *Library) topicSteps() []step {
	return []step{
		{pattern: `^a first account with more than (\d+) hbars$`, handler: l.firstTopicAccount},
		{pattern: `^A second account with more than (\d+) hbars$`, handler: l.secondTopicAccount},
		{pattern: `^A topic is created with the memo "([^"]*)" with the first account as the submit key$`, handler: l.createTopicWithFirstKey},
		{pattern: `^A (\d+) of (\d+) threshold key with the first and second account$`, handler: l.thresholdKey},
		{pattern: `^A topic is created with the memo "([^"]*)" with the threshold key as the submit key$`, handler: l.createTopicWithThresholdKey, propagation: true},
		{pattern: `^The message "([^"]*)" is published to the topic$`, handler: l.publishMessage},
		{pattern: `^The message "([^"]*)" is received by the topic and can be printed to the console$`, handler: l.messageReceived, propagation: true},
	}
}

func (l *Library) firstTopicAccount(ctx context.Context, hbars int64) error {
	_, err := l.bindFixture(ctx, "first", 0, hbars, false)
	return err
}

func (l *Library) secondTopicAccount(ctx context.Context, hbars int64) error {
	_, err := l.bindFixture(ctx, "second", 1, hbars, false)
	return err
}

func (l *Library) createTopicWithFirstKey(ctx context.Context, memo string) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	key, err := first.Key()
	if err != nil {
		return err
	}
	return l.createTopic(ctx, s, first, memo, key, []network.Identity{first})
}

func (l *Library) thresholdKey(ctx context.Context, threshold, total int) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	second, err := s.second()
	if err != nil {
		return err
	}
	members := []network.Identity{first, second}
	if total != len(members) {
		return errors.Errorf("a threshold key over the first and second account has 2 members, not %d", total)
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		pk, err := m.PublicKey()
		if err != nil {
			return err
		}
		keys = append(keys, pk)
	}
	if threshold < 1 {
		return errors.Errorf("invalid threshold %d, at least one signature is required", threshold)
	}
	k := network.ThresholdKey(uint(threshold), keys...)
	if err := k.Validate(); err != nil {
		return errors.WithMessagef(err, "invalid %d of %d threshold key", threshold, total)
	}
	s.ThresholdKey = &k
	// the first k members are enough to satisfy the key
	s.submitters = members[:threshold]
	return nil
}

func (l *Library) createTopicWithThresholdKey(ctx context.Context, memo string) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	if s.ThresholdKey == nil {
		return missing("threshold key", "A 1 of 2 threshold key with the first and second account")
	}
	if err := l.createTopic(ctx, s, first, memo, *s.ThresholdKey, s.submitters); err != nil {
		return err
	}
	topic := *s.Topic
	return poll.Until(ctx, l.cfg.Poll, func(ctx context.Context) (bool, error) {
		return l.mirror.TopicExists(ctx, topic)
	})
}

func (l *Library) createTopic(ctx context.Context, s *State, payer network.Identity, memo string, submitKey network.Key, submitters []network.Identity) error {
	receipt, err := l.ledger.CreateTopic(ctx, payer, network.TopicSpec{Memo: memo, SubmitKey: &submitKey})
	if err != nil {
		return errors.Wrapf(err, "failed creating topic [%s]", memo)
	}
	if len(receipt.TopicID) == 0 {
		return errors.Errorf("receipt of [%s] carries no topic id", receipt.TransactionID)
	}
	logger.Infof("created topic [%s] with submit key [%s]", receipt.TopicID, logging.Prefix(submitKey.String()))
	s.Topic = &receipt.TopicID
	s.submitters = submitters
	return nil
}

func (l *Library) publishMessage(ctx context.Context, message string) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	topic, err := s.topic()
	if err != nil {
		return err
	}
	info, err := l.ledger.TopicInfo(ctx, first, topic)
	if err != nil {
		return errors.Wrapf(err, "failed querying topic [%s]", topic)
	}
	receipt, err := l.ledger.SubmitMessage(ctx, first, topic, []byte(message), s.submitters...)
	if err != nil {
		return errors.Wrapf(err, "failed publishing to topic [%s]", topic)
	}
	logger.Debugf("published [%s] to topic [%s] as message %d", logging.Prefix(message), topic, receipt.TopicSequenceNumber)
	s.published = &publication{
		receipt:        receipt,
		contents:       []byte(message),
		sequenceBefore: info.SequenceNumber,
	}
	return nil
}

func (l *Library) messageReceived(ctx context.Context, message string) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	topic, err := s.topic()
	if err != nil {
		return err
	}
	p := s.published
	if p == nil {
		return missing("published message", "The message ... is published to the topic")
	}
	if err := assertEqual("published message", message, string(p.contents)); err != nil {
		return err
	}

	record, err := poll.For(ctx, l.cfg.Poll, func(ctx context.Context) (network.Record, error) {
		return l.ledger.Record(ctx, first, p.receipt.TransactionID)
	})
	if err != nil {
		return errors.Wrapf(err, "no record for submission [%s]", p.receipt.TransactionID)
	}
	if err := assertEqual("submission status", network.StatusSuccess, record.Receipt.Status); err != nil {
		return err
	}
	sequence := p.sequenceBefore + 1
	if err := assertEqual("topic sequence number", sequence, p.receipt.TopicSequenceNumber); err != nil {
		return err
	}

	info, err := l.ledger.TopicInfo(ctx, first, topic)
	if err != nil {
		return errors.Wrapf(err, "failed querying topic [%s]", topic)
	}
	if info.SequenceNumber < sequence {
		return &AssertionError{What: "topic sequence number", Expected: fmt.Sprintf("at least %d", sequence), Actual: info.SequenceNumber}
	}

	received, err := poll.For(ctx, l.cfg.Poll, func(ctx context.Context) (network.Message, error) {
		m, err := l.mirror.TopicMessage(ctx, topic, sequence)
		if err == nil && !bytes.Equal(m.Contents, p.contents) {
			return m, poll.Permanent(&AssertionError{What: "mirror message contents", Expected: message, Actual: logging.Printable(string(m.Contents)).String()})
		}
		return m, err
	})
	if err != nil {
		return errors.WithMessagef(err, "message %d of topic [%s] not received", sequence, topic)
	}
	_, err = fmt.Fprintf(l.out, "Received message %d on topic %s at %s: %s\n",
		received.SequenceNumber, received.Topic, received.ConsensusTimestamp.UTC().Format("2006-01-02T15:04:05.000Z"), logging.Printable(string(received.Contents)))
	return err
}
