// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ocb-boot (re)starts the OCB acquisition chain and supervises
// it: child processes are restarted from a clean slate, their output is
// redirected to per-process log files, and the raw files the chain
// produces are periodically spot-checked by decoding their first OCB
// packet.
package main // import "github.com/go-lpc/ocb/cmd/ocb-boot"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-lpc/ocb"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

type config struct {
	logdir  string // directory for per-process log files
	datadir string // directory holding the raw files to spot-check ("" disables)
	mon     bool   // attach a pmon monitor to each child
	freq    time.Duration
}

var stop = make(chan os.Signal, 1)

func main() {
	var cfg config
	flag.StringVar(&cfg.logdir, "log", os.Getenv("OCBLOGDIR"), "directory for process log files")
	flag.StringVar(&cfg.datadir, "data", "", "directory of OCB raw files to spot-check")
	flag.BoolVar(&cfg.mon, "pmon", false, "enable pmon monitoring")
	flag.DurationVar(&cfg.freq, "freq", 1*time.Second, "pmon sampling and spot-check interval")

	flag.Parse()

	log.SetPrefix("ocb-boot: ")
	log.SetFlags(0)

	if cfg.logdir == "" {
		cfg.logdir = "/var/log/ocb"
	}

	cmds := []*exec.Cmd{
		exec.Command("ocb-ctl", "-dir", cfg.datadir),
		exec.Command("ocb-srv"),
	}

	err := run(cfg, cmds, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg config, cmds []*exec.Cmd, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	reap(cmds)

	var (
		grp  errgroup.Group
		quit = make(chan struct{}) // supervisor shutdown requested
		done = make(chan struct{}) // all children exited
	)
	for i := range cmds {
		cmd := cmds[i]
		grp.Go(func() error {
			return boot(cfg, cmd, quit)
		})
	}

	var wdone chan struct{}
	if cfg.datadir != "" {
		wdone = make(chan struct{})
		go func() {
			defer close(wdone)
			watch(cfg.datadir, cfg.freq, quit, done)
		}()
	}

	go func() {
		<-stop
		close(quit)
	}()

	err := grp.Wait()
	close(done)
	if wdone != nil {
		<-wdone
	}
	if err != nil {
		return fmt.Errorf("could not supervise OCB acquisition chain: %w", err)
	}
	return nil
}

// reap terminates stale instances left behind by a previous boot.
func reap(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		name := filepath.Base(cmd.Path)
		kill := exec.Command("killall", name)
		kill.Stdout = os.Stdout
		kill.Stderr = os.Stderr
		if err := kill.Run(); err != nil {
			log.Printf("no stale %q to reap: %+v", name, err)
		}
	}
}

// boot starts one child of the acquisition chain and babysits it until
// it exits or the supervisor shuts down.
func boot(cfg config, cmd *exec.Cmd, quit chan struct{}) error {
	name := filepath.Base(cmd.Path)

	lf, err := os.Create(filepath.Join(cfg.logdir, name+".log"))
	if err != nil {
		return fmt.Errorf("could not create log file for %q: %w", name, err)
	}
	defer lf.Close()
	cmd.Stdout = lf
	cmd.Stderr = lf

	log.Printf("booting %q...", name)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not boot %q: %w", name, err)
	}

	if cfg.mon {
		release, err := monitor(cmd.Process.Pid, name, cfg.logdir, cfg.freq)
		if err != nil {
			return err
		}
		defer release()
	}

	exit := make(chan error, 1)
	go func() { exit <- cmd.Wait() }()

	select {
	case err := <-exit:
		if err != nil {
			return fmt.Errorf("child %q exited: %w", name, err)
		}
		log.Printf("child %q done", name)
		return nil
	case <-quit:
		log.Printf("shutting down %q...", name)
		err := cmd.Process.Signal(os.Interrupt)
		if err != nil {
			return fmt.Errorf("could not shut down %q: %w", name, err)
		}
		<-exit
		return nil
	}
}

// monitor attaches a pmon sampler to the child with the given pid. The
// returned function detaches it.
func monitor(pid int, name, dir string, freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not attach pmon to %q (pid=%d): %w", name, pid, err)
	}
	f, err := os.Create(filepath.Join(dir, name+"-pmon.log"))
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file for %q: %w", name, err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		log.Printf("sampling %q with pmon...", name)
		err := p.Run()
		if err != nil {
			log.Printf("pmon sampling of %q failed: %+v", name, err)
		}
	}()

	return func() {
		if err := p.Kill(); err != nil {
			log.Printf("could not detach pmon from %q: %+v", name, err)
		}
		_ = f.Close()
	}, nil
}

// watch periodically locates the most recent raw file under dir and
// spot-checks that it decodes. A chain that is up but writes garbage is
// flagged here, not by the per-process supervision.
func watch(dir string, freq time.Duration, quit, done chan struct{}) {
	tick := time.NewTicker(freq)
	defer tick.Stop()

	last := ""
	for {
		select {
		case <-quit:
			return
		case <-done:
			return
		case <-tick.C:
			fname, err := newest(dir)
			if err != nil {
				log.Printf("could not scan %q: %+v", dir, err)
				continue
			}
			if fname == "" || fname == last {
				continue
			}
			last = fname

			evt, err := probe(fname)
			if err != nil {
				log.Printf("raw file %q does not decode: %+v", fname, err)
				continue
			}
			log.Printf("raw file %q: event %d decodes, %d FEB(s) fired",
				fname, evt.EventNumber, evt.NFired(),
			)
		}
	}
}

// newest returns the most recently modified OCB raw file under dir.
func newest(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "ocb_*.raw"))
	if err != nil {
		return "", fmt.Errorf("could not glob %q: %w", dir, err)
	}

	var (
		fname string
		mtime time.Time
	)
	for _, file := range files {
		fi, err := os.Stat(file)
		if err != nil {
			return "", fmt.Errorf("could not stat %q: %w", file, err)
		}
		if fi.ModTime().After(mtime) {
			fname = file
			mtime = fi.ModTime()
		}
	}
	return fname, nil
}

// probe decodes the first OCB packet of the raw file at fname.
func probe(fname string) (ocb.Event, error) {
	var evt ocb.Event

	f, err := os.Open(fname)
	if err != nil {
		return evt, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	err = ocb.NewDecoder(f).Decode(&evt)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return evt, fmt.Errorf("no OCB packet in %q", fname)
		}
		return evt, fmt.Errorf("could not decode %q: %w", fname, err)
	}
	return evt, nil
}
