// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"testing"

	"golang.org/x/xerrors"
)

func stream(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func TestDecoder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		raw   []uint32
		want  error
		check func(t *testing.T, evt *Event)
	}{
		{
			name: "no-data",
			raw:  nil,
			want: io.EOF,
		},
		{
			name: "minimal-one-hit",
			raw: []uint32{
				0x80000001, // OCB header evt=1
				0x00100000, // gate header board=1 type=0
				0x10000010, // GTS header tag=0x10
				0x20100000, // hit time ch=1 hit=0 tag=0 rise t=0
				0x20104001, // hit time ch=1 hit=0 tag=0 fall t=1
				0x40000010, // GTS trailer-1 tag=0x10
				0x50000005, // GTS trailer-2 time=5
				0xd0100000, // FEB trailer board=1
				0x90000000, // OCB trailer
			},
			check: func(t *testing.T, evt *Event) {
				want := Event{EventNumber: 1}
				want.FEBs[1] = &FEBPacket{
					Board:    1,
					HoldTime: -1,
					GTSTimes: map[uint32]uint32{0x10: 5},
					Times: []TimeRecord{{
						Board: 1, Channel: 1, Hit: 0,
						Rise: 0, Fall: 1,
						TagRise: 0, TagFall: 0,
						GTSRise: 0x10, GTSFall: 0x10,
					}},
				}
				if !reflect.DeepEqual(*evt, want) {
					t.Fatalf("invalid event:\ngot= %#v\nwant=%#v", *evt, want)
				}
				if got, want := evt.NFired(), 1; got != want {
					t.Fatalf("invalid number of fired FEBs: got=%d, want=%d", got, want)
				}
			},
		},
		{
			name: "late-hit-routed-to-previous-interval",
			raw: []uint32{
				0x80000002,
				0x00100000,
				0x10000010, // GTS 0x10 opens
				0x20100000, // rise ch=1 tag=0
				0x40000010,
				0x50000005, // GTS 0x10 closes
				0x10000011, // GTS 0x11 opens
				0x20104001, // late fall, tag=0 -> belongs to 0x10
				0x40000011,
				0x50000006,
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				feb := evt.FEBs[1]
				if feb == nil {
					t.Fatalf("missing FEB 1")
				}
				want := []TimeRecord{{
					Board: 1, Channel: 1, Hit: 0,
					Rise: 0, Fall: 1,
					TagRise: 0, TagFall: 0,
					GTSRise: 0x10, GTSFall: 0x10,
				}}
				if !reflect.DeepEqual(feb.Times, want) {
					t.Fatalf("invalid hit times:\ngot= %#v\nwant=%#v", feb.Times, want)
				}
				if got, want := feb.GTSTimes, (map[uint32]uint32{0x10: 5, 0x11: 6}); !reflect.DeepEqual(got, want) {
					t.Fatalf("invalid GTS times: got=%v, want=%v", got, want)
				}
			},
		},
		{
			name: "envelope-mismatch",
			raw: []uint32{
				0x84000001, // header gate_type=2
				0x96000000, // trailer gate_type=3
			},
			want: xerrors.Errorf("ocb: gate type/tag %d/%d in header, %d/%d in trailer: %w",
				2, 0, 3, 0, ErrEnvelopeMismatch),
		},
		{
			name: "event-done-count-mismatch",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20100000,
				0x20104001,
				0x40000010,
				0x50000005,
				0xc0100063, // event done word_count=99
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				if got, want := len(evt.Warnings), 1; got != want {
					t.Fatalf("invalid number of warnings: got=%d, want=%d (%v)",
						got, want, evt.Warnings)
				}
				if got, want := evt.Warnings[0], "word count in EventDone (99) does not match FEB packet (0)"; got != want {
					t.Fatalf("invalid warning: got=%q, want=%q", got, want)
				}
				if feb := evt.FEBs[1]; feb == nil || len(feb.Times) != 1 {
					t.Fatalf("event not decoded despite warning: %#v", feb)
				}
			},
		},
		{
			name: "duplicate-rising-edge",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20100000,
				0x20100000,
				0x40000010,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d GTS 0x%x ch=%d hit=%d: %w",
				1, 0x10, 1, 0, ErrDupRisingEdge),
		},
		{
			name: "trailer-error-bit-15",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0xd0100000,
				0x90008000, // bit 15: gate open timeout
			},
			check: func(t *testing.T, evt *Event) {
				if !evt.Errors[15] {
					t.Fatalf("error bit 15 not set: %v", evt.Errors)
				}
				if got, want := evt.ErrorNames(), []string{"Gate open timeout"}; !reflect.DeepEqual(got, want) {
					t.Fatalf("invalid error names: got=%q, want=%q", got, want)
				}
			},
		},
		{
			name: "nested-ocb-header",
			raw: []uint32{
				0x80000001,
				0x80000002,
			},
			want: xerrors.Errorf("ocb: %w", ErrNestedHeader),
		},
		{
			name: "ocb-trailer-without-header",
			raw: []uint32{
				0x90000000,
			},
			want: xerrors.Errorf("ocb: %w", ErrPacketTrailerNoHeader),
		},
		{
			name: "truncated-stream",
			raw: []uint32{
				0x80000001,
				0x00100000,
			},
			want: xerrors.Errorf("ocb: stream ended inside an OCB packet: %w", ErrTruncatedStream),
		},
		{
			name: "empty-feb-packet",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				feb := evt.FEBs[1]
				if feb == nil {
					t.Fatalf("missing FEB 1")
				}
				if len(feb.Times) != 0 || len(feb.Amps) != 0 {
					t.Fatalf("unexpected hit data: %#v", feb)
				}
				if len(evt.Warnings) != 0 {
					t.Fatalf("unexpected warnings: %v", evt.Warnings)
				}
			},
		},
		{
			name: "hit-tag-mismatch",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20108000, // hit with tag=1, current=0x10 (0), previous unset
				0x40000010,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf(
				"ocb: FEB %d hit time ch=%d hit=%d tag=%d (current=0x%x, previous=0x%x): %w",
				1, 1, 0, 1, 0x10, -1, ErrHitTagMismatch),
		},
		{
			name: "falling-before-rising",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20104001, // fall with no rise
				0x40000010,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d GTS 0x%x ch=%d hit=%d: %w",
				1, 0x10, 1, 0, ErrFallingBeforeRising),
		},
		{
			name: "gts-trailer1-tag-mismatch",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x40000011, // trailer-1 for tag 0x11
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d GTS trailer-1 tag 0x%x, current GTS header tag 0x%x: %w",
				1, 0x11, 0x10, ErrTrailerTagMismatch),
		},
		{
			name: "gts-trailer2-without-header",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d: %w", 1, ErrTrailerNoHeader),
		},
		{
			name: "feb-trailer-without-gate-header",
			raw: []uint32{
				0x80000001,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: %w", ErrFEBTrailerNoHeader),
		},
		{
			name: "duplicate-gain-lg",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x30301123, // LG amplitude ch=3
				0x30301124,
				0x40000010,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d GTS 0x%x ch=%d: %w", 1, 0x10, 3, ErrDupGainLG),
		},
		{
			name: "duplicate-gain-hg",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x30302123, // HG amplitude ch=3
				0x30302124,
				0x40000010,
				0x50000005,
				0xd0100000,
				0x90000000,
			},
			want: xerrors.Errorf("ocb: FEB %d GTS 0x%x ch=%d: %w", 1, 0x10, 3, ErrDupGainHG),
		},
		{
			name: "invalid-word",
			raw: []uint32{
				0x80000001,
				0xa0000000,
			},
			want: xerrors.Errorf("ocb: could not decode word 0x%08x: %w", 0xa0000000,
				xerrors.Errorf("ocb: invalid word id 0x%X: %w", 0xa, ErrInvalidWord)),
		},
		{
			name: "invalid-board-id",
			raw: []uint32{
				0x80000001,
				0x00a00000, // gate header board=10
				0xd0a00000, // FEB trailer board=10
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				if got, want := evt.NFired(), 0; got != want {
					t.Fatalf("invalid number of fired FEBs: got=%d, want=%d", got, want)
				}
				if got, want := evt.Warnings, []string{"FEB with invalid board id 10, skipping"}; !reflect.DeepEqual(got, want) {
					t.Fatalf("invalid warnings: got=%q, want=%q", got, want)
				}
			},
		},
		{
			name: "duplicate-feb-board",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20100000,
				0x20104001,
				0x40000010,
				0x50000005,
				0xd0100000,
				0x00100000, // board 1 again
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				if got, want := evt.Warnings, []string{"FEB data packet for board 1 already received, skipping"}; !reflect.DeepEqual(got, want) {
					t.Fatalf("invalid warnings: got=%q, want=%q", got, want)
				}
				if feb := evt.FEBs[1]; feb == nil || len(feb.Times) != 1 {
					t.Fatalf("first FEB packet lost: %#v", evt.FEBs[1])
				}
			},
		},
		{
			name: "unexpected-words-warn",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x60100000, // gate trailer
				0xe0001234, // housekeeping
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				want := []string{
					"unexpected GateTrailer word inside OCB packet",
					"unexpected Housekeeping word inside OCB packet",
				}
				if !reflect.DeepEqual(evt.Warnings, want) {
					t.Fatalf("invalid warnings:\ngot= %q\nwant=%q", evt.Warnings, want)
				}
			},
		},
		{
			name: "unterminated-gts-interval",
			raw: []uint32{
				0x80000001,
				0x00100000,
				0x10000010,
				0x20100000, // rise, never closed by a trailer-2
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				feb := evt.FEBs[1]
				if feb == nil {
					t.Fatalf("missing FEB 1")
				}
				want := []TimeRecord{{
					Board: 1, Channel: 1, Hit: 0,
					Rise: 0, Fall: -1,
					TagRise: 0, TagFall: -1,
					GTSRise: 0x10, GTSFall: -1,
				}}
				if !reflect.DeepEqual(feb.Times, want) {
					t.Fatalf("invalid hit times:\ngot= %#v\nwant=%#v", feb.Times, want)
				}
				if len(feb.GTSTimes) != 0 {
					t.Fatalf("unexpected GTS times: %v", feb.GTSTimes)
				}
			},
		},
		{
			name: "words-outside-envelope-skipped",
			raw: []uint32{
				0xe0001234, // housekeeping, before any OCB header
				0x80000001,
				0x00100000,
				0xd0100000,
				0x90000000,
			},
			check: func(t *testing.T, evt *Event) {
				if len(evt.Warnings) != 0 {
					t.Fatalf("unexpected warnings: %v", evt.Warnings)
				}
				if got, want := evt.NFired(), 1; got != want {
					t.Fatalf("invalid number of fired FEBs: got=%d, want=%d", got, want)
				}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dec := NewDecoder(bytes.NewReader(stream(tc.raw...)))
			var evt Event
			err := dec.Decode(&evt)
			switch {
			case err != nil && tc.want == nil:
				t.Fatalf("could not decode: %+v", err)
			case err == nil && tc.want != nil:
				t.Fatalf("expected an error: %+v", tc.want)
			case err != nil && tc.want != nil:
				if got, want := err.Error(), tc.want.Error(); got != want {
					t.Fatalf("invalid error:\ngot: %+v\nwant:%+v\n", got, want)
				}
				return
			}
			if tc.check != nil {
				tc.check(t, &evt)
			}
		})
	}
}

func TestDecoderBigEndian(t *testing.T) {
	raw := stream(
		0x80000001,
		0x00100000,
		0xd0100000,
		0x90000000,
	)
	// byte-swap each word
	for i := 0; i < len(raw); i += 4 {
		raw[i], raw[i+1], raw[i+2], raw[i+3] = raw[i+3], raw[i+2], raw[i+1], raw[i]
	}

	dec := NewDecoder(bytes.NewReader(raw))
	dec.Order = binary.BigEndian
	var evt Event
	err := dec.Decode(&evt)
	if err != nil {
		t.Fatalf("could not decode big-endian stream: %+v", err)
	}
	if got, want := evt.EventNumber, uint32(1); got != want {
		t.Fatalf("invalid event number: got=%d, want=%d", got, want)
	}
}

func TestDecoderIdempotence(t *testing.T) {
	packet := []uint32{
		0x80000001,
		0x00100000,
		0x10000010,
		0x20100000,
		0x20104001,
		0x40000010,
		0x50000005,
		0xd0100000,
		0x90000000,
	}
	raw := append(stream(packet...), stream(packet...)...)

	dec := NewDecoder(bytes.NewReader(raw))
	var evt1, evt2 Event
	if err := dec.Decode(&evt1); err != nil {
		t.Fatalf("could not decode first event: %+v", err)
	}
	if err := dec.Decode(&evt2); err != nil {
		t.Fatalf("could not decode second event: %+v", err)
	}
	if !reflect.DeepEqual(evt1, evt2) {
		t.Fatalf("identical packets decoded differently:\nevt1=%#v\nevt2=%#v", evt1, evt2)
	}

	var evt3 Event
	if err := dec.Decode(&evt3); err != io.EOF {
		t.Fatalf("expected io.EOF, got %+v", err)
	}
}
