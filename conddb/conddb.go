// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the conditions and cabling
// database of the OCB readout: which FEB sits in which OCB slot for a
// given run, and the run records themselves.
package conddb // import "github.com/go-lpc/ocb/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve conditions data from the
// OCB readout database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the conditions database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRun returns the number of the most recent run.
func (db *DB) LastRun(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT run FROM runs ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("conddb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("conddb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("conddb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("conddb: context error while retrieving last run: %w", err)
	}

	return run, nil
}

// FEBSlot describes the front-end board cabled to one slot of an OCB.
type FEBSlot struct {
	OCB    uint8  `json:"ocb_id"`
	Slot   uint8  `json:"slot"`
	Serial string `json:"serial"`
	Plane  string `json:"plane"`
}

// FEBSlots returns the FEB cabling of the given OCB for the given run.
func (db *DB) FEBSlots(ctx context.Context, run uint32, ocb uint8) ([]FEBSlot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT ocb, slot, serial, plane FROM febs WHERE run = ? AND ocb = ? ORDER BY slot",
		run, ocb,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query FEB slots: %w", err)
	}
	defer rows.Close()

	var slots []FEBSlot
	for rows.Next() {
		var slot FEBSlot
		err = rows.Scan(&slot.OCB, &slot.Slot, &slot.Serial, &slot.Plane)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not get FEB slot value: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for FEB slots: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving FEB slots: %w", err)
	}

	return slots, nil
}
