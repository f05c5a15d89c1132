// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ingest accepts sampler connections and keeps one session per
// client IP address.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/relabs-tech/motion_stream/internal/wire"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server reads frames from every connected sampler into a Registry.
type Server struct {
	Registry *Registry
	// IdleTimeout drops a connection that sends nothing for this long.
	// Zero waits forever.
	IdleTimeout time.Duration

	wg sync.WaitGroup
}

// NewServer returns a server feeding reg.
func NewServer(reg *Registry, idleTimeout time.Duration) *Server {
	return &Server{Registry: reg, IdleTimeout: idleTimeout}
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("ingest: listen %s: %w", addr, err)
	}
	log.Printf("ingest: TCP server listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, one handler goroutine each, until ctx is
// cancelled or ln is closed. Cancelling ctx also closes open connections.
// Serve returns once every handler has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			log.Printf("ingest: accept error: %v (retrying in %v)", err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	remote := conn.RemoteAddr()
	id, err := Identity(remote)
	if err != nil {
		log.Printf("ingest: rejecting connection: %v", err)
		return
	}

	sess, resumed := s.Registry.Attach(id)
	if resumed {
		log.Printf("ingest: client %s reconnected from %s, keeping shape %s", id, remote, sess.Shape)
	} else {
		log.Printf("ingest: new client %s from %s, assigned shape %s", id, remote, sess.Shape)
	}
	defer s.Registry.Detach(id)

	var buf wire.Frame
	for {
		if s.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}

		sample, err := wire.ReadFrame(conn, &buf)
		switch {
		case err == nil:
			s.Registry.UpdateRotation(id, sample)
		case errors.Is(err, wire.ErrNonFinite):
			if n := s.Registry.RecordRejected(id); n == 1 || n%100 == 0 {
				log.Printf("ingest: client %s sent non-finite frame %v (%d rejected)", id, sample, n)
			}
		case wire.IsDisconnect(err):
			log.Printf("ingest: client %s disconnected: %v", id, err)
			return
		case ctx.Err() != nil:
			return
		default:
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("ingest: client %s idle for %v, dropping connection", id, s.IdleTimeout)
			} else {
				log.Printf("ingest: client %s read error: %v", id, err)
			}
			return
		}
	}
}
