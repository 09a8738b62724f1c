/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/pkg/errors"
)

// Identity is an account together with the private key that authorizes it.
type Identity struct {
	Account    AccountID
	PrivateKey string
}

func (i Identity) IsZero() bool {
	return len(i.Account) == 0
}

func (i Identity) String() string {
	return string(i.Account)
}

// PublicKey derives the public key of the identity's private key.
func (i Identity) PublicKey() (string, error) {
	return PublicKeyOf(i.PrivateKey)
}

// Key returns the single-key structure equivalent to the identity's public key.
func (i Identity) Key() (Key, error) {
	pk, err := i.PublicKey()
	if err != nil {
		return Key{}, errors.Wrapf(err, "failed deriving key of [%s]", i.Account)
	}
	return SingleKey(pk), nil
}

// PublicKeyOf parses an ED25519 private key and returns its public key in string form.
func PublicKeyOf(privateKey string) (string, error) {
	if len(privateKey) == 0 {
		return "", errors.New("empty private key")
	}
	pk, err := hedera.PrivateKeyFromStringEd25519(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "invalid ED25519 private key")
	}
	return pk.PublicKey().String(), nil
}

// GenerateKey returns a fresh ED25519 private key and its public key.
func GenerateKey() (privateKey string, publicKey string, err error) {
	pk, err := hedera.PrivateKeyGenerateEd25519()
	if err != nil {
		return "", "", errors.Wrap(err, "failed generating ED25519 key")
	}
	return pk.String(), pk.PublicKey().String(), nil
}

// ErrNoPayer is returned by paid operations invoked without a payer identity.
var ErrNoPayer = errors.New("no payer identity")

// CheckPayer fails when the payer is not set.
func CheckPayer(payer Identity) error {
	if payer.IsZero() || len(payer.PrivateKey) == 0 {
		return ErrNoPayer
	}
	return nil
}
