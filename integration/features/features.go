/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package features embeds the scenario files so that the binary runs them without a checkout.
package features

import "embed"

//go:embed *.feature
var FS embed.FS
