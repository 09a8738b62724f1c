/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mirror reads ingested ledger state from a mirror node REST API.
package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
	"github.com/thedevsaddam/gojsonq"
)

var logger = logging.MustGetLogger()

// Well-known public mirror REST endpoints per network name.
var DefaultURLs = map[string]string{
	"mainnet":    "https://mainnet-public.mirrornode.hedera.com",
	"testnet":    "https://testnet.mirrornode.hedera.com",
	"previewnet": "https://previewnet.mirrornode.hedera.com",
}

const maxBody = 1 << 20

type Client struct {
	base *url.URL
	http *http.Client
}

var _ network.Mirror = (*Client)(nil)

// New returns a client for the REST API rooted at baseURL, e.g. https://testnet.mirrornode.hedera.com.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid mirror url [%s]", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid mirror url [%s]: scheme must be http or https", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// TokenBalance returns the balance the mirror reports for account. An account the mirror knows
// but that holds no entry for the token has balance zero.
func (c *Client) TokenBalance(ctx context.Context, account network.AccountID, token network.TokenID) (uint64, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/accounts/%s/tokens", account), url.Values{"token.id": {string(token)}})
	if err != nil {
		return 0, err
	}
	jq := gojsonq.New().FromString(body)
	entry := jq.From("tokens").Where("token_id", "=", string(token)).First()
	if jq.Error() != nil {
		return 0, errors.Wrapf(jq.Error(), "failed decoding token balances of [%s]", account)
	}
	if entry == nil {
		return 0, nil
	}
	m, ok := entry.(map[string]interface{})
	if !ok {
		return 0, errors.Errorf("unexpected token balance entry [%v]", entry)
	}
	b, ok := m["balance"].(float64)
	if !ok || b < 0 {
		return 0, errors.Errorf("unexpected balance [%v] for [%s] of [%s]", m["balance"], account, token)
	}
	return uint64(b), nil
}

func (c *Client) TopicMessage(ctx context.Context, topic network.TopicID, sequence uint64) (network.Message, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/topics/%s/messages/%d", topic, sequence), nil)
	if err != nil {
		return network.Message{}, err
	}
	jq := gojsonq.New().FromString(body)
	encoded, _ := jq.Find("message").(string)
	jq.Reset()
	seq, _ := jq.Find("sequence_number").(float64)
	jq.Reset()
	ts, _ := jq.Find("consensus_timestamp").(string)
	if jq.Error() != nil {
		return network.Message{}, errors.Wrapf(jq.Error(), "failed decoding message [%d] of topic [%s]", sequence, topic)
	}
	contents, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return network.Message{}, errors.Wrapf(err, "failed decoding contents of message [%d] of topic [%s]", sequence, topic)
	}
	at, err := ParseTimestamp(ts)
	if err != nil {
		return network.Message{}, err
	}
	return network.Message{
		Topic:              topic,
		SequenceNumber:     uint64(seq),
		Contents:           contents,
		ConsensusTimestamp: at,
	}, nil
}

func (c *Client) TopicExists(ctx context.Context, topic network.TopicID) (bool, error) {
	_, err := c.get(ctx, fmt.Sprintf("/api/v1/topics/%s", topic), nil)
	if errors.Is(err, network.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (string, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrapf(err, "failed building request for [%s]", u.String())
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed querying mirror [%s]", u.String())
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", errors.Wrapf(err, "failed reading mirror response of [%s]", u.String())
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		logger.Debugf("mirror has no entry at [%s] yet", u.Path)
		return "", errors.Wrapf(network.ErrNotFound, "mirror [%s]", u.Path)
	case resp.StatusCode != http.StatusOK:
		return "", errors.Errorf("mirror [%s] answered %d: %s", u.Path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), nil
}

// ParseTimestamp parses the mirror's "seconds.nanoseconds" timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	secs, nanos, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp [%s]", s)
	}
	var nsec int64
	if len(nanos) > 0 {
		if len(nanos) > 9 {
			return time.Time{}, errors.Errorf("invalid timestamp [%s]", s)
		}
		nanos += strings.Repeat("0", 9-len(nanos))
		if nsec, err = strconv.ParseInt(nanos, 10, 64); err != nil {
			return time.Time{}, errors.Wrapf(err, "invalid timestamp [%s]", s)
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}
