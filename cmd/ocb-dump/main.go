// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ocb-dump decodes and displays OCB raw data files.
//
// Usage: ocb-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> ocb-dump ./testdata/run1234_ocb0.raw
//	=== OCB event 1 ===
//	gate type:  0
//	gate tag:   0
//	FEBs fired: 1
//	--- FEB 1 (hold=-1) ---
//	gts 0x0000010 time=5
//	hit ch=  1 hit=0 rise=    0 fall=    1
//	[...]
package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/go-lpc/ocb"
	"github.com/go-lpc/ocb/internal/mmap"
)

func main() {
	log.SetPrefix("ocb-dump: ")
	log.SetFlags(0)

	be := flag.Bool("be", false, "decode big-endian words")

	flag.Usage = func() {
		fmt.Printf(`ocb-dump decodes and displays OCB raw data files.

Usage: ocb-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> ocb-dump ./testdata/run1234_ocb0.raw
 === OCB event 1 ===
 gate type:  0
 gate tag:   0
 FEBs fired: 1
 --- FEB 1 (hold=-1) ---
 gts 0x0000010 time=5
 hit ch=  1 hit=0 rise=    0 fall=    1
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input OCB raw file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *be)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, be bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not mmap %q: %w", fname, err)
	}
	defer f.Close()

	dec := ocb.NewDecoder(f.Reader())
	if be {
		dec.Order = binary.BigEndian
	}

loop:
	for {
		var evt ocb.Event
		err := dec.Decode(&evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode OCB packet: %w", err)
		}
		dump(wbuf, &evt)
	}

	return nil
}

func dump(w io.Writer, evt *ocb.Event) {
	fmt.Fprintf(w, "=== OCB event %d ===\n", evt.EventNumber)
	fmt.Fprintf(w, "gate type:  %d\n", evt.GateType)
	fmt.Fprintf(w, "gate tag:   %d\n", evt.GateTag)
	fmt.Fprintf(w, "FEBs fired: %d\n", evt.NFired())
	for _, name := range evt.ErrorNames() {
		fmt.Fprintf(w, "error:      %s\n", name)
	}
	for _, warn := range evt.Warnings {
		fmt.Fprintf(w, "warning:    %s\n", warn)
	}

	for _, feb := range evt.FEBs {
		if feb == nil {
			continue
		}
		fmt.Fprintf(w, "--- FEB %d (hold=%d) ---\n", feb.Board, feb.HoldTime)

		tags := make([]uint32, 0, len(feb.GTSTimes))
		for tag := range feb.GTSTimes {
			tags = append(tags, tag)
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
		for _, tag := range tags {
			fmt.Fprintf(w, "gts 0x%07x time=%d\n", tag, feb.GTSTimes[tag])
		}

		for _, hit := range feb.Times {
			fmt.Fprintf(w, "hit ch=%3d hit=%d rise=%5d fall=%5d\n",
				hit.Channel, hit.Hit, hit.Rise, hit.Fall,
			)
		}
		for _, amp := range feb.Amps {
			fmt.Fprintf(w, "amp ch=%3d lg=%5d hg=%5d\n",
				amp.Channel, amp.LG, amp.HG,
			)
		}
	}
}
