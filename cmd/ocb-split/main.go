// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ocb-split splits an OCB raw file into n raw files, one per
// gate type.
package main // import "github.com/go-lpc/ocb/cmd/ocb-split"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/ocb"
)

var (
	msg = log.New(os.Stdout, "ocb-split: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("ocb", flag.ExitOnError)

		oname = fset.String("o", "out.raw", "path to output OCB raw file")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: ocb-split [OPTIONS] file.raw

ex:
 $> ocb-split -o out.raw ./run1234_ocb0.raw

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() != 1 {
		fset.Usage()
		msg.Fatalf("missing input OCB raw file")
	}

	if *oname == "" {
		fset.Usage()
		msg.Fatalf("invalid output OCB raw file")
	}

	for _, arg := range fset.Args() {
		err := process(*oname, arg)
		if err != nil {
			msg.Fatalf("could not split OCB file %q: %+v", arg, err)
		}
	}
}

func process(oname, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open OCB file: %w", err)
	}
	defer f.Close()

	out := make(map[uint8]*ocb.Encoder)

	dec := ocb.NewDecoder(f)

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

		enc, ok := out[evt.GateType]
		if !ok {
			w, err := os.Create(splitName(oname, evt.GateType))
			if err != nil {
				return fmt.Errorf("could not create output file: %w", err)
			}
			defer w.Close()
			enc = ocb.NewEncoder(w)
			out[evt.GateType] = enc
		}

		err = enc.Encode(&evt)
		if err != nil {
			return fmt.Errorf("could not encode event %d: %w", evt.EventNumber, err)
		}
	}

	msg.Printf("split %q into %d file(s)", fname, len(out))
	return nil
}

func splitName(oname string, gate uint8) string {
	ext := filepath.Ext(oname)
	return strings.TrimSuffix(oname, ext) + fmt.Sprintf("-gt%d", gate) + ext
}
