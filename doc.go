// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ocb decodes the binary data stream produced by an Off-detector
// Concentrator Board (OCB) into structured physics events.
//
// An OCB multiplexes the data of up to nine Front-End Boards (FEBs) into a
// stream of 32-bit words. Package ocb reconstructs, from that flat stream,
// the tree of OCB packets, per-board FEB packets, Global Time-Stamp (GTS)
// intervals and per-channel hits.
package ocb // import "github.com/go-lpc/ocb"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of ocb and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/ocb"
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
