// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocb

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"github.com/go-daq/tdaq"
	"golang.org/x/xerrors"
)

// Server exposes an OCB raw data source as a TDAQ process: it decodes the
// incoming word stream and publishes one re-encoded OCB packet per event
// on its output handle.
type Server struct {
	src string // path to a raw file, or tcp://host:port of a live source

	n    int
	evts chan []byte
}

// NewServer creates a server decoding the OCB stream read from src.
func NewServer(src string) *Server {
	return &Server{src: src}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.evts = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.evts = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.n)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// Events feeds the output handle with re-encoded OCB packets.
func (srv *Server) Events(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.evts:
		dst.Body = data
	}
	return nil
}

// Run decodes the raw stream until it is exhausted or the run stops.
func (srv *Server) Run(ctx tdaq.Context) error {
	r, err := srv.open()
	if err != nil {
		ctx.Msg.Errorf("could not open %q: %+v", srv.src, err)
		return err
	}
	defer r.Close()

	dec := NewDecoder(r)
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		var evt Event
		err := dec.Decode(&evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				ctx.Msg.Infof("end of stream after %d events", srv.n)
				return nil
			}
			ctx.Msg.Errorf("could not decode event: %+v", err)
			return xerrors.Errorf("ocb: could not decode event: %w", err)
		}
		for _, warn := range evt.Warnings {
			ctx.Msg.Infof("event %d: %s", evt.EventNumber, warn)
		}

		buf := new(bytes.Buffer)
		err = NewEncoder(buf).Encode(&evt)
		if err != nil {
			return xerrors.Errorf("ocb: could not re-encode event %d: %w",
				evt.EventNumber, err)
		}

		select {
		case srv.evts <- buf.Bytes():
			srv.n++
		case <-ctx.Ctx.Done():
			return nil
		}
	}
}

func (srv *Server) open() (io.ReadCloser, error) {
	if strings.HasPrefix(srv.src, "tcp://") {
		conn, err := net.Dial("tcp", strings.TrimPrefix(srv.src, "tcp://"))
		if err != nil {
			return nil, xerrors.Errorf("ocb: could not dial %q: %w", srv.src, err)
		}
		return conn, nil
	}
	f, err := os.Open(srv.src)
	if err != nil {
		return nil, xerrors.Errorf("ocb: could not open %q: %w", srv.src, err)
	}
	return f, nil
}
