// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import "errors"

// Fatal decode conditions. All of them abort the OCB packet being decoded
// and surface through Decoder.Decode, wrapped with context about the
// offending word. Match with errors.Is.
var (
	ErrInvalidWord           = errors.New("invalid word id")
	ErrEnvelopeMismatch      = errors.New("OCB packet header/trailer mismatch")
	ErrNestedHeader          = errors.New("nested OCB packet header")
	ErrPacketTrailerNoHeader = errors.New("OCB packet trailer without header")
	ErrTruncatedStream       = errors.New("truncated stream")
	ErrFEBTrailerNoHeader    = errors.New("FEB trailer without gate header")
	ErrFEBPacketEmpty        = errors.New("empty FEB packet")
	ErrHitTagMismatch        = errors.New("hit tag matches neither current nor previous GTS")
	ErrTrailerTagMismatch    = errors.New("GTS trailer-1 tag mismatch")
	ErrTrailerNoHeader       = errors.New("GTS trailer-2 without header")
	ErrDupRisingEdge         = errors.New("duplicate rising edge")
	ErrFallingBeforeRising   = errors.New("falling edge before rising edge")
	ErrDupGainLG             = errors.New("duplicate low-gain amplitude")
	ErrDupGainHG             = errors.New("duplicate high-gain amplitude")
)
