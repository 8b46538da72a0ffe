// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"fmt"

	"golang.org/x/xerrors"
)

// WordID classifies a 32-bit word of the OCB stream. It is carried by the
// top 4 bits of the raw word.
type WordID uint8

const (
	IDGateHeader   WordID = 0x0
	IDGTSHeader    WordID = 0x1
	IDHitTime      WordID = 0x2
	IDHitAmplitude WordID = 0x3
	IDGTSTrailer1  WordID = 0x4
	IDGTSTrailer2  WordID = 0x5
	IDGateTrailer  WordID = 0x6
	IDGateTime     WordID = 0x7
	IDHeader       WordID = 0x8 // OCB packet header
	IDTrailer      WordID = 0x9 // OCB packet trailer
	IDHoldTime     WordID = 0xB
	IDEventDone    WordID = 0xC
	IDFEBTrailer   WordID = 0xD
	IDHousekeeping WordID = 0xE
	IDSpecial      WordID = 0xF
)

func (id WordID) String() string {
	switch id {
	case IDGateHeader:
		return "GateHeader"
	case IDGTSHeader:
		return "GTSHeader"
	case IDHitTime:
		return "HitTime"
	case IDHitAmplitude:
		return "HitAmplitude"
	case IDGTSTrailer1:
		return "GTSTrailer1"
	case IDGTSTrailer2:
		return "GTSTrailer2"
	case IDGateTrailer:
		return "GateTrailer"
	case IDGateTime:
		return "GateTime"
	case IDHeader:
		return "OCBPacketHeader"
	case IDTrailer:
		return "OCBPacketTrailer"
	case IDHoldTime:
		return "HoldTime"
	case IDEventDone:
		return "EventDone"
	case IDFEBTrailer:
		return "FEBDataPacketTrailer"
	case IDHousekeeping:
		return "Housekeeping"
	case IDSpecial:
		return "Special"
	}
	return fmt.Sprintf("WordID(0x%X)", uint8(id))
}

// Word is one decoded 32-bit word of the OCB stream.
type Word interface {
	WordID() WordID
	pack() uint32
}

// field extracts width bits of raw, starting at bit shift.
func field(raw uint32, shift, width uint32) uint32 {
	return (raw >> shift) & (1<<width - 1)
}

// GateHeader opens the data of one FEB within an OCB packet.
// Type selects between the two header layouts: a type-0 header carries the
// gate type and number, a type-1 header the gate time w.r.t. the GTS clock.
type GateHeader struct {
	Board      uint8
	Type       uint8
	GateType   uint8  // type-0 only
	GateNumber uint16 // type-0 only
	GateTime   uint16 // type-1 only, 11 bits
}

func (GateHeader) WordID() WordID { return IDGateHeader }

func (w GateHeader) pack() uint32 {
	raw := uint32(IDGateHeader)<<28 |
		uint32(w.Board)<<20 |
		uint32(w.Type&0x1)<<19
	switch w.Type {
	case 0:
		raw |= uint32(w.GateType&0x7)<<16 | uint32(w.GateNumber)
	default:
		raw |= uint32(w.GateTime & 0x7ff)
	}
	return raw
}

// GTSHeader opens a GTS interval inside a FEB packet.
type GTSHeader struct {
	Tag uint32 // 28-bit GTS tag
}

func (GTSHeader) WordID() WordID { return IDGTSHeader }

func (w GTSHeader) pack() uint32 {
	return uint32(IDGTSHeader)<<28 | w.Tag&0xfffffff
}

// HitTime is one rising or falling edge of a channel hit.
type HitTime struct {
	Channel uint8
	Hit     uint8  // 3-bit hit counter within the channel
	Tag     uint8  // 2-bit truncated GTS tag
	Edge    uint8  // 0=rise, 1=fall
	Time    uint16 // 13-bit hit time
}

func (HitTime) WordID() WordID { return IDHitTime }

func (w HitTime) pack() uint32 {
	return uint32(IDHitTime)<<28 |
		uint32(w.Channel)<<20 |
		uint32(w.Hit&0x7)<<17 |
		uint32(w.Tag&0x3)<<15 |
		uint32(w.Edge&0x1)<<14 |
		uint32(w.Time&0x1fff)
}

// HitAmplitude is one amplitude sample of a channel hit.
// A gain id of 2 flags the high-gain sample, any other value low gain.
type HitAmplitude struct {
	Channel uint8
	Hit     uint8
	Tag     uint8
	Gain    uint8  // 3-bit amplitude id
	Value   uint16 // 12-bit amplitude
}

func (HitAmplitude) WordID() WordID { return IDHitAmplitude }

func (w HitAmplitude) pack() uint32 {
	return uint32(IDHitAmplitude)<<28 |
		uint32(w.Channel)<<20 |
		uint32(w.Hit&0x7)<<17 |
		uint32(w.Tag&0x3)<<15 |
		uint32(w.Gain&0x7)<<12 |
		uint32(w.Value&0xfff)
}

// GTSTrailer1 is the first of the two words closing a GTS interval.
type GTSTrailer1 struct {
	Tag uint32 // 28-bit GTS tag
}

func (GTSTrailer1) WordID() WordID { return IDGTSTrailer1 }

func (w GTSTrailer1) pack() uint32 {
	return uint32(IDGTSTrailer1)<<28 | w.Tag&0xfffffff
}

// GTSTrailer2 is the second of the two words closing a GTS interval.
type GTSTrailer2 struct {
	Data    uint8
	OCBBusy uint8
	FEBBusy uint8
	Time    uint32 // 20-bit GTS time
}

func (GTSTrailer2) WordID() WordID { return IDGTSTrailer2 }

func (w GTSTrailer2) pack() uint32 {
	return uint32(IDGTSTrailer2)<<28 |
		uint32(w.Data&0x1)<<27 |
		uint32(w.OCBBusy&0x1)<<26 |
		uint32(w.FEBBusy&0x1)<<25 |
		w.Time&0xfffff
}

// GateTrailer closes a gate on the FEB side.
type GateTrailer struct {
	Board      uint8
	GateType   uint8
	GateNumber uint16
}

func (GateTrailer) WordID() WordID { return IDGateTrailer }

func (w GateTrailer) pack() uint32 {
	return uint32(IDGateTrailer)<<28 |
		uint32(w.Board)<<20 |
		uint32(w.GateType&0x7)<<16 |
		uint32(w.GateNumber)
}

// GateTime carries the absolute time of the gate.
type GateTime struct {
	Time uint32 // 28 bits
}

func (GateTime) WordID() WordID { return IDGateTime }

func (w GateTime) pack() uint32 {
	return uint32(IDGateTime)<<28 | w.Time&0xfffffff
}

// PacketHeader opens an OCB packet.
type PacketHeader struct {
	GateType    uint8
	GateTag     uint8
	EventNumber uint32 // 23 bits
}

func (PacketHeader) WordID() WordID { return IDHeader }

func (w PacketHeader) pack() uint32 {
	return uint32(IDHeader)<<28 |
		uint32(w.GateType&0x7)<<25 |
		uint32(w.GateTag&0x3)<<23 |
		w.EventNumber&0x7fffff
}

// PacketTrailer closes an OCB packet. Errors holds the 16 error flags of
// the trailer, bit i flagging the condition named by ErrorBitName(i).
type PacketTrailer struct {
	GateType uint8
	GateTag  uint8
	Errors   uint16
}

func (PacketTrailer) WordID() WordID { return IDTrailer }

func (w PacketTrailer) pack() uint32 {
	return uint32(IDTrailer)<<28 |
		uint32(w.GateType&0x7)<<25 |
		uint32(w.GateTag&0x3)<<23 |
		uint32(w.Errors)
}

// HoldTime carries the hold time of a FEB gate.
type HoldTime struct {
	Board uint8
	Type  uint8
	Hold  uint16 // 11 bits
}

func (HoldTime) WordID() WordID { return IDHoldTime }

func (w HoldTime) pack() uint32 {
	return uint32(IDHoldTime)<<28 |
		uint32(w.Board)<<20 |
		uint32(w.Type&0x1)<<19 |
		uint32(w.Hold&0x7ff)
}

// EventDone reports the number of words a FEB contributed to the event.
type EventDone struct {
	Board      uint8
	GateNumber uint8 // 4 LSBs of the gate number
	WordCount  uint16
}

func (EventDone) WordID() WordID { return IDEventDone }

func (w EventDone) pack() uint32 {
	return uint32(IDEventDone)<<28 |
		uint32(w.Board)<<20 |
		uint32(w.GateNumber&0xf)<<16 |
		uint32(w.WordCount)
}

// FEBTrailer closes the data of one FEB within an OCB packet.
type FEBTrailer struct {
	Board            uint8
	ArtificialTrl2   bool
	EventDoneTimeout bool
	D1FifoFull       bool
	D0FifoFull       bool
	RBCountError     bool
	DecoderErrors    uint16 // 15 bits
}

func (FEBTrailer) WordID() WordID { return IDFEBTrailer }

func (w FEBTrailer) pack() uint32 {
	raw := uint32(IDFEBTrailer)<<28 |
		uint32(w.Board)<<20 |
		uint32(w.DecoderErrors&0x7fff)
	if w.ArtificialTrl2 {
		raw |= 1 << 19
	}
	if w.EventDoneTimeout {
		raw |= 1 << 18
	}
	if w.D1FifoFull {
		raw |= 1 << 17
	}
	if w.D0FifoFull {
		raw |= 1 << 16
	}
	if w.RBCountError {
		raw |= 1 << 15
	}
	return raw
}

// Housekeeping is a housekeeping word. Its payload is opaque to the
// decoder and carried through as-is.
type Housekeeping struct {
	Payload uint32 // 28 bits
}

func (Housekeeping) WordID() WordID { return IDHousekeeping }

func (w Housekeeping) pack() uint32 {
	return uint32(IDHousekeeping)<<28 | w.Payload&0xfffffff
}

// Special is a special word with an opaque payload.
type Special struct {
	Payload uint32 // 28 bits
}

func (Special) WordID() WordID { return IDSpecial }

func (w Special) pack() uint32 {
	return uint32(IDSpecial)<<28 | w.Payload&0xfffffff
}

// DecodeWord decodes a raw 32-bit word into its tagged variant.
// Word id 0xA is reserved and yields ErrInvalidWord.
func DecodeWord(raw uint32) (Word, error) {
	id := WordID(field(raw, 28, 4))
	switch id {
	case IDGateHeader:
		w := GateHeader{
			Board: uint8(field(raw, 20, 8)),
			Type:  uint8(field(raw, 19, 1)),
		}
		switch w.Type {
		case 0:
			w.GateType = uint8(field(raw, 16, 3))
			w.GateNumber = uint16(field(raw, 0, 16))
		default:
			w.GateTime = uint16(field(raw, 0, 11))
		}
		return w, nil
	case IDGTSHeader:
		return GTSHeader{Tag: field(raw, 0, 28)}, nil
	case IDHitTime:
		return HitTime{
			Channel: uint8(field(raw, 20, 8)),
			Hit:     uint8(field(raw, 17, 3)),
			Tag:     uint8(field(raw, 15, 2)),
			Edge:    uint8(field(raw, 14, 1)),
			Time:    uint16(field(raw, 0, 13)),
		}, nil
	case IDHitAmplitude:
		return HitAmplitude{
			Channel: uint8(field(raw, 20, 8)),
			Hit:     uint8(field(raw, 17, 3)),
			Tag:     uint8(field(raw, 15, 2)),
			Gain:    uint8(field(raw, 12, 3)),
			Value:   uint16(field(raw, 0, 12)),
		}, nil
	case IDGTSTrailer1:
		return GTSTrailer1{Tag: field(raw, 0, 28)}, nil
	case IDGTSTrailer2:
		return GTSTrailer2{
			Data:    uint8(field(raw, 27, 1)),
			OCBBusy: uint8(field(raw, 26, 1)),
			FEBBusy: uint8(field(raw, 25, 1)),
			Time:    field(raw, 0, 20),
		}, nil
	case IDGateTrailer:
		return GateTrailer{
			Board:      uint8(field(raw, 20, 8)),
			GateType:   uint8(field(raw, 16, 3)),
			GateNumber: uint16(field(raw, 0, 16)),
		}, nil
	case IDGateTime:
		return GateTime{Time: field(raw, 0, 28)}, nil
	case IDHeader:
		return PacketHeader{
			GateType:    uint8(field(raw, 25, 3)),
			GateTag:     uint8(field(raw, 23, 2)),
			EventNumber: field(raw, 0, 23),
		}, nil
	case IDTrailer:
		return PacketTrailer{
			GateType: uint8(field(raw, 25, 3)),
			GateTag:  uint8(field(raw, 23, 2)),
			Errors:   uint16(field(raw, 0, 16)),
		}, nil
	case IDHoldTime:
		return HoldTime{
			Board: uint8(field(raw, 20, 8)),
			Type:  uint8(field(raw, 19, 1)),
			Hold:  uint16(field(raw, 0, 11)),
		}, nil
	case IDEventDone:
		return EventDone{
			Board:      uint8(field(raw, 20, 8)),
			GateNumber: uint8(field(raw, 16, 4)),
			WordCount:  uint16(field(raw, 0, 16)),
		}, nil
	case IDFEBTrailer:
		return FEBTrailer{
			Board:            uint8(field(raw, 20, 8)),
			ArtificialTrl2:   field(raw, 19, 1) == 1,
			EventDoneTimeout: field(raw, 18, 1) == 1,
			D1FifoFull:       field(raw, 17, 1) == 1,
			D0FifoFull:       field(raw, 16, 1) == 1,
			RBCountError:     field(raw, 15, 1) == 1,
			DecoderErrors:    uint16(field(raw, 0, 15)),
		}, nil
	case IDHousekeeping:
		return Housekeeping{Payload: field(raw, 0, 28)}, nil
	case IDSpecial:
		return Special{Payload: field(raw, 0, 28)}, nil
	}
	return nil, xerrors.Errorf("ocb: invalid word id 0x%X: %w", uint8(id), ErrInvalidWord)
}
