// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"testing"

	"github.com/go-lpc/ocb/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()
}

func TestLastRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"run"},
		Values: [][]driver.Value{
			{int64(1234)},
		},
	}, func(ctx context.Context) error {
		run, err := db.LastRun(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run: %+v", err)
		}

		if got, want := run, uint32(1234); got != want {
			t.Fatalf("invalid last run: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestFEBSlots(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"ocb", "slot", "serial", "plane"},
		Values: [][]driver.Value{
			{int64(0), int64(0), "FEB-2041", "U-02"},
			{int64(0), int64(1), "FEB-2042", "V-02"},
		},
	}, func(ctx context.Context) error {
		slots, err := db.FEBSlots(ctx, 1234, 0)
		if err != nil {
			t.Fatalf("could not retrieve FEB slots: %+v", err)
		}

		want := []FEBSlot{
			{OCB: 0, Slot: 0, Serial: "FEB-2041", Plane: "U-02"},
			{OCB: 0, Slot: 1, Serial: "FEB-2042", Plane: "V-02"},
		}
		if got := slots; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid FEB slots:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}
