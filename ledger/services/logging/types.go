/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix shortens long identifiers such as public keys and message payloads for log lines.
func Prefix(id string) fmt.Stringer {
	return prefix(id)
}

type prefix string

func (w prefix) String() string {
	s := string(w)
	if len(s) <= 20 {
		return strings.ToValidUTF8(s, "X")
	}
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%s~%s", strings.ToValidUTF8(s[:20], "X"), hex.EncodeToString(sum[:4]))
}

func Printable(id string) fmt.Stringer {
	return printable(id)
}

type printable string

func (w printable) String() string {
	return strings.ToValidUTF8(string(w), "X")
}
