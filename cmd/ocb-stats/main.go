// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ocb-stats accumulates hit-time and amplitude distributions
// over OCB raw data files.
package main // import "github.com/go-lpc/ocb/cmd/ocb-stats"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/ocb"
	"go-hep.org/x/hep/hbook"
)

func main() {
	log.SetPrefix("ocb-stats: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`ocb-stats accumulates hit-time and amplitude distributions
over OCB raw data files.

Usage: ocb-stats FILE1 [FILE2 [FILE3 ...]]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input OCB raw file")
	}

	stats := newStats()
	for _, fname := range flag.Args() {
		err := stats.process(fname)
		if err != nil {
			log.Fatalf("could not process file %q: %+v", fname, err)
		}
	}
	stats.print(os.Stdout)
}

type stats struct {
	evts  int
	rise  *hbook.H1D
	fall  *hbook.H1D
	lg    *hbook.H1D
	hg    *hbook.H1D
	nfeb  *hbook.H1D
	width *hbook.H1D // fall-rise, complete hits only
}

func newStats() *stats {
	return &stats{
		rise:  hbook.NewH1D(128, 0, 8192),
		fall:  hbook.NewH1D(128, 0, 8192),
		lg:    hbook.NewH1D(128, 0, 4096),
		hg:    hbook.NewH1D(128, 0, 4096),
		nfeb:  hbook.NewH1D(ocb.NumFEBsPerOCB+1, 0, ocb.NumFEBsPerOCB+1),
		width: hbook.NewH1D(128, -4096, 4096),
	}
}

func (st *stats) process(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec := ocb.NewDecoder(f)
	for {
		var evt ocb.Event
		err := dec.Decode(&evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode OCB packet: %w", err)
		}
		st.fill(&evt)
	}
}

func (st *stats) fill(evt *ocb.Event) {
	st.evts++
	st.nfeb.Fill(float64(evt.NFired()), 1)
	for _, feb := range evt.FEBs {
		if feb == nil {
			continue
		}
		for _, hit := range feb.Times {
			if hit.Rise >= 0 {
				st.rise.Fill(float64(hit.Rise), 1)
			}
			if hit.Fall >= 0 {
				st.fall.Fill(float64(hit.Fall), 1)
			}
			if hit.Rise >= 0 && hit.Fall >= 0 {
				st.width.Fill(float64(hit.Fall-hit.Rise), 1)
			}
		}
		for _, amp := range feb.Amps {
			if amp.LG >= 0 {
				st.lg.Fill(float64(amp.LG), 1)
			}
			if amp.HG >= 0 {
				st.hg.Fill(float64(amp.HG), 1)
			}
		}
	}
}

func (st *stats) print(w io.Writer) {
	fmt.Fprintf(w, "events:     %d\n", st.evts)
	for _, h := range []struct {
		name string
		h1d  *hbook.H1D
	}{
		{"FEBs/event", st.nfeb},
		{"rise time ", st.rise},
		{"fall time ", st.fall},
		{"hit width ", st.width},
		{"LG amp    ", st.lg},
		{"HG amp    ", st.hg},
	} {
		fmt.Fprintf(w, "%s: entries=%6d mean=%8.2f rms=%8.2f\n",
			h.name, int(h.h1d.Entries()), h.h1d.XMean(), h.h1d.XRMS(),
		)
	}
}
