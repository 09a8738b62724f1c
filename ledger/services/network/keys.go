/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Key is either a single public key or a k-of-n threshold over public keys.
// A single key has Threshold 0 and exactly one entry.
type Key struct {
	Threshold  uint
	PublicKeys []string
}

func SingleKey(publicKey string) Key {
	return Key{PublicKeys: []string{publicKey}}
}

func ThresholdKey(threshold uint, publicKeys ...string) Key {
	return Key{Threshold: threshold, PublicKeys: publicKeys}
}

func (k Key) IsThreshold() bool {
	return k.Threshold != 0 || len(k.PublicKeys) > 1
}

// Required returns how many distinct signatures satisfy the key.
func (k Key) Required() int {
	if k.Threshold == 0 {
		return len(k.PublicKeys)
	}
	return int(k.Threshold)
}

func (k Key) Validate() error {
	if len(k.PublicKeys) == 0 {
		return errors.New("key has no public keys")
	}
	if int(k.Threshold) > len(k.PublicKeys) {
		return errors.Errorf("threshold %d exceeds the %d keys of the list", k.Threshold, len(k.PublicKeys))
	}
	seen := make(map[string]struct{}, len(k.PublicKeys))
	for _, pk := range k.PublicKeys {
		if len(pk) == 0 {
			return errors.New("empty public key in key list")
		}
		if _, ok := seen[pk]; ok {
			return errors.Errorf("duplicate public key [%s] in key list", pk)
		}
		seen[pk] = struct{}{}
	}
	return nil
}

// SatisfiedBy reports whether the given signer public keys satisfy the key.
func (k Key) SatisfiedBy(signers ...string) bool {
	if len(k.PublicKeys) == 0 {
		return false
	}
	signed := make(map[string]struct{}, len(signers))
	for _, s := range signers {
		signed[s] = struct{}{}
	}
	matched := 0
	for _, pk := range k.PublicKeys {
		if _, ok := signed[pk]; ok {
			matched++
		}
	}
	return matched >= k.Required()
}

func (k Key) String() string {
	if !k.IsThreshold() {
		return strings.Join(k.PublicKeys, "")
	}
	return "threshold(" + strconv.Itoa(k.Required()) + " of [" + strings.Join(k.PublicKeys, ",") + "])"
}
