// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/xerrors"
)

// Decoder reads (and validates) OCB packets from an underlying stream of
// 32-bit words, one decoded Event per OCB packet.
type Decoder struct {
	r io.Reader

	// Order is the byte order of the 32-bit words in the stream.
	// It defaults to little-endian.
	Order binary.ByteOrder

	buf [4]byte
}

// NewDecoder creates a decoder that reads and validates OCB packets from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, Order: binary.LittleEndian}
}

// Decode reads the next OCB packet from the stream and decodes it into
// evt. It returns io.EOF when the stream ends cleanly between packets.
// Words appearing outside an OCB envelope are skipped.
func (dec *Decoder) Decode(evt *Event) error {
	var (
		words  []Word
		inside bool
	)
	for {
		raw, err := dec.readU32()
		if err != nil {
			switch {
			case !inside && errors.Is(err, io.EOF):
				return io.EOF
			case inside:
				return xerrors.Errorf("ocb: stream ended inside an OCB packet: %w",
					ErrTruncatedStream)
			default:
				return xerrors.Errorf("ocb: could not read word: %w", err)
			}
		}

		w, err := DecodeWord(raw)
		if err != nil {
			return xerrors.Errorf("ocb: could not decode word 0x%08x: %w", raw, err)
		}

		switch w := w.(type) {
		case PacketHeader:
			if inside {
				return xerrors.Errorf("ocb: %w", ErrNestedHeader)
			}
			inside = true
			words = append(words[:0], w)

		case PacketTrailer:
			if !inside {
				return xerrors.Errorf("ocb: %w", ErrPacketTrailerNoHeader)
			}
			words = append(words, w)
			return decodeOCB(words, evt)

		default:
			if inside {
				words = append(words, w)
			}
		}
	}
}

func (dec *Decoder) readU32() (uint32, error) {
	_, err := io.ReadFull(dec.r, dec.buf[:])
	if err != nil {
		return 0, err
	}
	return dec.Order.Uint32(dec.buf[:]), nil
}

// decodeOCB decodes one complete OCB packet: it validates the envelope,
// slices the word stream into per-board FEB packets and reconciles the
// per-FEB word counts reported by the event-done words.
func decodeOCB(words []Word, evt *Event) error {
	hdr := words[0].(PacketHeader)
	trl := words[len(words)-1].(PacketTrailer)

	if hdr.GateType != trl.GateType || hdr.GateTag != trl.GateTag {
		return xerrors.Errorf(
			"ocb: gate type/tag %d/%d in header, %d/%d in trailer: %w",
			hdr.GateType, hdr.GateTag, trl.GateType, trl.GateTag,
			ErrEnvelopeMismatch,
		)
	}

	*evt = Event{
		EventNumber: hdr.EventNumber,
		GateType:    hdr.GateType,
		GateTag:     hdr.GateTag,
	}
	for i := range evt.Errors {
		evt.Errors[i] = trl.Errors&(1<<i) != 0
	}

	var (
		gateIdx = -1 // index of the last type-0 gate header
		board   = -1
		nWords  = 0 // FEB word counter, cross-checked against EventDone
		nGTS    = 0
	)

	for idx := 1; idx < len(words)-1; idx++ {
		switch w := words[idx].(type) {
		case GateHeader:
			if w.Type != 0 {
				nWords++
				break
			}
			nWords = 0
			nGTS = 0
			gateIdx = idx
			board = int(w.Board)
			// a lone type-0 header is inserted by the OCB itself and
			// does not count; one followed by its type-1 companion does
			if _, ok := words[idx+1].(GateHeader); ok {
				nWords++
			}

		case GateTime, HoldTime:
			nWords++

		case GTSHeader:
			nGTS++
			if nGTS > NumGTSBeforeEvent {
				nWords++
			}

		case GTSTrailer1, GTSTrailer2, HitTime, HitAmplitude:
			if nGTS > NumGTSBeforeEvent {
				nWords++
			}

		case EventDone:
			if int(w.WordCount) != nWords {
				evt.warnf("word count in EventDone (%d) does not match FEB packet (%d)",
					w.WordCount, nWords)
			}

		case FEBTrailer:
			nWords++
			if gateIdx < 0 {
				return xerrors.Errorf("ocb: %w", ErrFEBTrailerNoHeader)
			}
			switch {
			case board < 0 || board >= NumFEBsPerOCB:
				evt.warnf("FEB with invalid board id %d, skipping", board)
			case evt.FEBs[board] != nil:
				evt.warnf("FEB data packet for board %d already received, skipping", board)
			default:
				feb, err := decodeFEB(words[gateIdx : idx+1])
				if err != nil {
					return err
				}
				evt.FEBs[board] = feb
			}
			gateIdx = -1

		default:
			evt.warnf("unexpected %v word inside OCB packet", w.WordID())
		}
	}

	return nil
}
