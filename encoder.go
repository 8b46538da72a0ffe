// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"encoding/binary"
	"io"
	"sort"

	"golang.org/x/xerrors"
)

// Encoder writes OCB packets to an output stream, re-emitting decoded
// events in the canonical word order: packet header; then, per fired FEB
// in board order, the gate header pair, the optional hold time, each
// closed GTS interval in tag order, the event-done word and the FEB
// trailer; then the packet trailer.
//
// Encoding a decoded event and decoding the result yields a structurally
// equal event, provided every GTS interval of the input closed (records
// routed to an interval with no trailer-2 have no canonical position).
type Encoder struct {
	w io.Writer

	// Order is the byte order of the 32-bit words in the stream.
	// It defaults to little-endian.
	Order binary.ByteOrder

	buf [4]byte
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, Order: binary.LittleEndian}
}

// Encode writes evt to the stream as one OCB packet.
func (enc *Encoder) Encode(evt *Event) error {
	if evt == nil {
		return nil
	}

	enc.writeWord(PacketHeader{
		GateType:    evt.GateType,
		GateTag:     evt.GateTag,
		EventNumber: evt.EventNumber,
	})
	if enc.err != nil {
		return xerrors.Errorf("ocb: could not write OCB packet header: %w", enc.err)
	}

	for _, feb := range evt.FEBs {
		if feb == nil {
			continue
		}
		enc.encodeFEB(evt, feb)
	}

	var bits uint16
	for i, set := range evt.Errors {
		if set {
			bits |= 1 << i
		}
	}
	enc.writeWord(PacketTrailer{
		GateType: evt.GateType,
		GateTag:  evt.GateTag,
		Errors:   bits,
	})
	if enc.err != nil {
		return xerrors.Errorf("ocb: could not write OCB packet: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) encodeFEB(evt *Event, feb *FEBPacket) {
	var (
		gateNum = uint16(evt.EventNumber)
		nWords  = 0 // mirrors the word accounting of the OCB slicer
	)

	enc.writeWord(GateHeader{
		Board:      feb.Board,
		Type:       0,
		GateType:   evt.GateType,
		GateNumber: gateNum,
	})
	nWords++ // counted: the type-1 companion follows
	enc.writeWord(GateHeader{Board: feb.Board, Type: 1})
	nWords++
	if feb.HoldTime >= 0 {
		enc.writeWord(HoldTime{Board: feb.Board, Hold: uint16(feb.HoldTime)})
		nWords++
	}

	tags := make([]uint32, 0, len(feb.GTSTimes))
	for tag := range feb.GTSTimes {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	for i, tag := range tags {
		counted := i+1 > NumGTSBeforeEvent
		count := func() {
			if counted {
				nWords++
			}
		}

		enc.writeWord(GTSHeader{Tag: tag})
		count()
		for _, rec := range feb.Times {
			if rec.GTSRise != int32(tag) {
				continue
			}
			enc.writeWord(HitTime{
				Channel: rec.Channel,
				Hit:     rec.Hit,
				Tag:     uint8(rec.TagRise),
				Edge:    0,
				Time:    uint16(rec.Rise),
			})
			count()
			if rec.Fall >= 0 {
				enc.writeWord(HitTime{
					Channel: rec.Channel,
					Hit:     rec.Hit,
					Tag:     uint8(rec.TagFall),
					Edge:    1,
					Time:    uint16(rec.Fall),
				})
				count()
			}
		}
		for _, rec := range feb.Amps {
			if rec.GTSLG == int32(tag) {
				enc.writeWord(HitAmplitude{
					Channel: rec.Channel,
					Tag:     uint8(rec.TagLG),
					Gain:    1,
					Value:   uint16(rec.LG),
				})
				count()
			}
			if rec.GTSHG == int32(tag) {
				enc.writeWord(HitAmplitude{
					Channel: rec.Channel,
					Tag:     uint8(rec.TagHG),
					Gain:    2,
					Value:   uint16(rec.HG),
				})
				count()
			}
		}
		enc.writeWord(GTSTrailer1{Tag: tag})
		count()
		enc.writeWord(GTSTrailer2{Time: feb.GTSTimes[tag]})
		count()
	}

	enc.writeWord(EventDone{
		Board:      feb.Board,
		GateNumber: uint8(gateNum & 0xf),
		WordCount:  uint16(nWords),
	})
	enc.writeWord(FEBTrailer{
		Board:            feb.Board,
		ArtificialTrl2:   feb.ArtificialTrl2,
		EventDoneTimeout: feb.EventDoneTimeout,
		D1FifoFull:       feb.D1FifoFull,
		D0FifoFull:       feb.D0FifoFull,
		RBCountError:     feb.RBCountError,
		DecoderErrors:    feb.DecoderErrors,
	})
}

func (enc *Encoder) writeWord(w Word) {
	if enc.err != nil {
		return
	}
	enc.Order.PutUint32(enc.buf[:], w.pack())
	_, enc.err = enc.w.Write(enc.buf[:])
}
