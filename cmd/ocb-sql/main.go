// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ocb-sql inspects the conditions database of the OCB readout.
package main // import "github.com/go-lpc/ocb/cmd/ocb-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/ocb/conddb"
	_ "github.com/go-sql-driver/mysql"
)

const (
	dbname = "ocbsrv"
)

func main() {
	log.SetPrefix("ocb-sql: ")
	log.SetFlags(0)

	var (
		run = flag.Uint("run", 0, "run number to inspect (0: latest)")
		id  = flag.Int("ocb", 0, "OCB ID to inspect")
	)

	flag.Parse()

	log.Printf("ocb: %03d", *id)

	db, err := conddb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open conditions db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, uint32(*run), uint8(*id))
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *conddb.DB, run uint32, ocbID uint8) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if run == 0 {
		v, err := db.LastRun(ctx)
		if err != nil {
			return fmt.Errorf("could not get last run: %w", err)
		}
		run = v
		log.Printf("run: %d", run)
	}

	slots, err := db.FEBSlots(ctx, run, ocbID)
	if err != nil {
		return fmt.Errorf("could not get FEB slots for run %d: %w", run, err)
	}

	for _, slot := range slots {
		log.Printf("ocb=%d slot=%d serial=%q plane=%q",
			slot.OCB, slot.Slot, slot.Serial, slot.Plane,
		)
	}
	return nil
}
