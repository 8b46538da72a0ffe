// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"sort"

	"golang.org/x/xerrors"
)

// decodeFEB decodes one FEB data packet from the word slice delimited by
// its gate header and FEB trailer.
//
// Hit words of a GTS interval may arrive after the trailer-2 word that
// closes it, interleaved with the next interval. The walk therefore keeps
// two accumulation windows, current and previous, and routes each hit by
// matching the low 2 bits of its tag id against the two interval tags.
// The hardware guarantees at most one interval of latency.
func decodeFEB(words []Word) (*FEBPacket, error) {
	if len(words) == 0 {
		return nil, xerrors.Errorf("ocb: %w", ErrFEBPacketEmpty)
	}

	gh, ok := words[0].(GateHeader)
	if !ok {
		return nil, xerrors.Errorf("ocb: FEB packet starts with %v, not a gate header",
			words[0].WordID())
	}
	trl, ok := words[len(words)-1].(FEBTrailer)
	if !ok {
		return nil, xerrors.Errorf("ocb: FEB packet ends with %v, not a FEB trailer",
			words[len(words)-1].WordID())
	}

	feb := &FEBPacket{
		Board:            gh.Board,
		HoldTime:         -1,
		GTSTimes:         make(map[uint32]uint32),
		ArtificialTrl2:   trl.ArtificialTrl2,
		EventDoneTimeout: trl.EventDoneTimeout,
		D1FifoFull:       trl.D1FifoFull,
		D0FifoFull:       trl.D0FifoFull,
		RBCountError:     trl.RBCountError,
		DecoderErrors:    trl.DecoderErrors,
	}
	// the hold time follows the gate header, or its type-1 companion
	hold := 1
	if len(words) > 2 {
		if g1, ok := words[1].(GateHeader); ok && g1.Type == 1 {
			hold = 2
		}
	}
	if len(words) > hold {
		if ht, ok := words[hold].(HoldTime); ok {
			feb.HoldTime = int32(ht.Hold)
		}
	}

	var (
		curTag  = int32(-1)
		prevTag = int32(-1)
		cur     []Word
		prev    []Word
	)

	for _, w := range words {
		switch w := w.(type) {
		case GTSHeader:
			curTag = int32(w.Tag)
			cur = []Word{w}

		case HitTime:
			switch int32(w.Tag) & tagMask {
			case curTag & tagMask:
				cur = append(cur, w)
			case prevTag & tagMask:
				prev = append(prev, w)
			default:
				return nil, xerrors.Errorf(
					"ocb: FEB %d hit time ch=%d hit=%d tag=%d (current=0x%x, previous=0x%x): %w",
					feb.Board, w.Channel, w.Hit, w.Tag, curTag, prevTag, ErrHitTagMismatch,
				)
			}

		case HitAmplitude:
			switch int32(w.Tag) & tagMask {
			case curTag & tagMask:
				cur = append(cur, w)
			case prevTag & tagMask:
				prev = append(prev, w)
			default:
				return nil, xerrors.Errorf(
					"ocb: FEB %d hit amplitude ch=%d hit=%d tag=%d (current=0x%x, previous=0x%x): %w",
					feb.Board, w.Channel, w.Hit, w.Tag, curTag, prevTag, ErrHitTagMismatch,
				)
			}

		case GTSTrailer1:
			if int32(w.Tag) != curTag {
				return nil, xerrors.Errorf(
					"ocb: FEB %d GTS trailer-1 tag 0x%x, current GTS header tag 0x%x: %w",
					feb.Board, w.Tag, curTag, ErrTrailerTagMismatch,
				)
			}
			cur = append(cur, w)

		case GTSTrailer2:
			if len(cur) == 0 {
				return nil, xerrors.Errorf("ocb: FEB %d: %w", feb.Board, ErrTrailerNoHeader)
			}
			cur = append(cur, w)
			if len(prev) > 0 {
				if err := feb.mergeGTS(prevTag, prev); err != nil {
					return nil, err
				}
			}
			feb.GTSTimes[uint32(curTag)] = w.Time
			prevTag = curTag
			prev = cur
			cur = nil

		default:
			// gate header/trailer, hold time, gate time, event done:
			// envelope and bookkeeping words, not routed through the
			// GTS windows.
		}
	}

	// Flush the windows still open when the FEB trailer arrives. The
	// current window may hold an interval that never saw a trailer-2;
	// its hits are processed all the same (and its tag is absent from
	// GTSTimes).
	if len(prev) > 0 {
		if err := feb.mergeGTS(prevTag, prev); err != nil {
			return nil, err
		}
	}
	if len(cur) > 0 {
		if err := feb.mergeGTS(curTag, cur); err != nil {
			return nil, err
		}
	}

	return feb, nil
}

type hitKey struct {
	channel uint8
	hit     uint8
}

// mergeGTS merges the hit words of one GTS interval into the FEB packet:
// rising/falling edges pair up by (channel, hit), low/high-gain amplitude
// samples match by channel. Records are appended in key order.
func (feb *FEBPacket) mergeGTS(tag int32, block []Word) error {
	var (
		times = make(map[hitKey]*TimeRecord)
		amps  = make(map[uint8]*AmpRecord)
		out   []TimeRecord
	)

	for _, w := range block {
		switch w := w.(type) {
		case HitTime:
			key := hitKey{w.Channel, w.Hit}
			switch w.Edge {
			case 0:
				if _, dup := times[key]; dup {
					return xerrors.Errorf(
						"ocb: FEB %d GTS 0x%x ch=%d hit=%d: %w",
						feb.Board, tag, w.Channel, w.Hit, ErrDupRisingEdge,
					)
				}
				times[key] = &TimeRecord{
					Board:   feb.Board,
					Channel: w.Channel,
					Hit:     w.Hit,
					Rise:    int32(w.Time),
					Fall:    -1,
					TagRise: int32(w.Tag),
					TagFall: -1,
					GTSRise: tag,
					GTSFall: -1,
				}
			default:
				rec, ok := times[key]
				if !ok {
					return xerrors.Errorf(
						"ocb: FEB %d GTS 0x%x ch=%d hit=%d: %w",
						feb.Board, tag, w.Channel, w.Hit, ErrFallingBeforeRising,
					)
				}
				rec.Fall = int32(w.Time)
				rec.TagFall = int32(w.Tag)
				rec.GTSFall = tag
				out = append(out, *rec)
				delete(times, key)
			}

		case HitAmplitude:
			rec, ok := amps[w.Channel]
			if !ok {
				rec = &AmpRecord{
					Board:   feb.Board,
					Channel: w.Channel,
					LG:      -1,
					HG:      -1,
					TagLG:   -1,
					TagHG:   -1,
					GTSLG:   -1,
					GTSHG:   -1,
				}
				amps[w.Channel] = rec
			}
			switch w.Gain {
			case 2:
				if rec.HG >= 0 {
					return xerrors.Errorf(
						"ocb: FEB %d GTS 0x%x ch=%d: %w",
						feb.Board, tag, w.Channel, ErrDupGainHG,
					)
				}
				rec.HG = int32(w.Value)
				rec.TagHG = int32(w.Tag)
				rec.GTSHG = tag
			default:
				if rec.LG >= 0 {
					return xerrors.Errorf(
						"ocb: FEB %d GTS 0x%x ch=%d: %w",
						feb.Board, tag, w.Channel, ErrDupGainLG,
					)
				}
				rec.LG = int32(w.Value)
				rec.TagLG = int32(w.Tag)
				rec.GTSLG = tag
			}
		}
	}

	// rising-only hits are kept as-is
	for _, rec := range times {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Hit < out[j].Hit
	})
	feb.Times = append(feb.Times, out...)

	chans := make([]uint8, 0, len(amps))
	for ch := range amps {
		chans = append(chans, ch)
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })
	for _, ch := range chans {
		feb.Amps = append(feb.Amps, *amps[ch])
	}

	return nil
}
