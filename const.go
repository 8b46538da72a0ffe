// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

const (
	// NumFEBsPerOCB is the number of FEB slots an OCB packet can carry.
	NumFEBsPerOCB = 9

	// NumGTSBeforeEvent is the number of GTS intervals a FEB emits before
	// the event window opens. Words belonging to those intervals do not
	// count towards the FEB word count reported by the EventDone word.
	NumGTSBeforeEvent = 2

	// tagMask selects the low bits of a GTS tag that hit words carry as
	// their 2-bit tag id.
	tagMask = 0x3
)
