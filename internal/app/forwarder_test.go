// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/stream"
	"github.com/relabs-tech/motion_stream/internal/wire"
)

func TestBackoffNext(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		want    []time.Duration
	}{
		{"fixed", Backoff{Delay: time.Second}, []time.Duration{time.Second, time.Second, time.Second}},
		{"immediate", Backoff{}, []time.Duration{0, 0, 0}},
		{"doubling", Backoff{Delay: time.Second, MaxDelay: 5 * time.Second},
			[]time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}},
		{"cap below delay", Backoff{Delay: 2 * time.Second, MaxDelay: time.Second},
			[]time.Duration{2 * time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				assert.Equal(t, want, tt.backoff.Next(i+1), "failure %d", i+1)
			}
		})
	}
}

func startForwarder(t *testing.T, f *Forwarder) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestForwarderStreamsFramesInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	q, err := stream.NewChannel[motion.Sample](10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.True(t, q.TrySend(motion.Sample{X: float32(i), Y: 1, Z: -1}))
	}

	startForwarder(t, &Forwarder{Remote: ln.Addr().String(), In: q, Backoff: Backoff{Delay: 10 * time.Millisecond}})

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var buf wire.Frame
	for i := 0; i < 5; i++ {
		s, err := wire.ReadFrame(conn, &buf)
		require.NoError(t, err)
		assert.Equal(t, motion.Sample{X: float32(i), Y: 1, Z: -1}, s)
	}
}

func TestForwarderReconnectsAfterServerDrop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	q, err := stream.NewChannel[motion.Sample](10)
	require.NoError(t, err)
	f := &Forwarder{Remote: ln.Addr().String(), In: q, Backoff: Backoff{Delay: 5 * time.Millisecond}}
	startForwarder(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for i := 0; ctx.Err() == nil; i++ {
			if q.Send(ctx, motion.Sample{X: float32(i)}) != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	var buf wire.Frame
	first, err := ln.Accept()
	require.NoError(t, err)
	_, err = wire.ReadFrame(first, &buf)
	require.NoError(t, err)
	first.Close()

	second, err := ln.Accept()
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, err = wire.ReadFrame(second, &buf)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st := f.Stats()
		return st.Connects >= 2 && st.WriteErrors >= 1
	}, time.Second, time.Millisecond)
}

// flakyDialer fails a fixed number of times, then hands out one end of a pipe.
type flakyDialer struct {
	failures int
	attempts atomic.Int32
	mu       sync.Mutex
	peer     net.Conn
	ready    chan struct{}
}

func (d *flakyDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	n := int(d.attempts.Add(1))
	if n <= d.failures {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	d.mu.Lock()
	d.peer = server
	d.mu.Unlock()
	close(d.ready)
	return client, nil
}

func TestForwarderRetriesDialFailures(t *testing.T) {
	q, err := stream.NewChannel[motion.Sample](10)
	require.NoError(t, err)
	require.True(t, q.TrySend(motion.Sample{X: 1, Y: 2, Z: 3}))

	dialer := &flakyDialer{failures: 3, ready: make(chan struct{})}
	f := &Forwarder{Remote: "sensor-sink:8080", In: q, Dialer: dialer, Backoff: Backoff{Delay: time.Millisecond, MaxDelay: 4 * time.Millisecond}}
	startForwarder(t, f)

	select {
	case <-dialer.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder never connected")
	}
	dialer.mu.Lock()
	peer := dialer.peer
	dialer.mu.Unlock()

	var buf wire.Frame
	s, err := wire.ReadFrame(peer, &buf)
	require.NoError(t, err)
	assert.Equal(t, motion.Sample{X: 1, Y: 2, Z: 3}, s)
	assert.Equal(t, int32(4), dialer.attempts.Load())
	assert.Equal(t, uint64(3), f.Stats().DialErrors)
}

func TestForwarderCancelUnblocksWrite(t *testing.T) {
	q, err := stream.NewChannel[motion.Sample](10)
	require.NoError(t, err)
	require.True(t, q.TrySend(motion.Sample{X: 1}))

	// nobody reads the server end, so the first write blocks
	dialer := &flakyDialer{ready: make(chan struct{})}
	f := &Forwarder{Remote: "sensor-sink:8080", In: q, Dialer: dialer}
	cancel, done := startForwarder(t, f)

	<-dialer.ready
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder stuck in write after cancel")
	}
	assert.Equal(t, uint64(0), f.Stats().Sent)
}
