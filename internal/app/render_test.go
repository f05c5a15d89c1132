// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_stream/internal/ingest"
	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []scene.Frame
	err    error
}

func (s *recordingSink) PublishScene(f scene.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// lockedSource always reports the registry as busy.
type lockedSource struct{}

func (lockedSource) TrySnapshot() ([]ingest.Entry, bool) { return nil, false }

func TestRenderTickLaysOutSnapshot(t *testing.T) {
	reg := ingest.NewRegistry(ingest.WithShapePicker(func() ingest.Shape { return ingest.Torus }))
	id := netip.MustParseAddr("10.0.0.1")
	reg.Attach(id)
	reg.UpdateRotation(id, motion.Sample{X: 0.5, Y: 0.25, Z: -0.5})

	sink := &recordingSink{}
	loop := &RenderLoop{Source: reg, Interval: time.Hour, Sinks: []SceneSink{sink}}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.True(t, loop.Tick(now))
	require.Len(t, sink.frames, 1)

	f := sink.frames[0]
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, now, f.Time)
	require.Len(t, f.Instances, 1)
	assert.Equal(t, ingest.Torus, f.Instances[0].Shape)
	assert.Equal(t, scene.Vec3{X: 0.5, Y: 0.25, Z: -0.5}, f.Instances[0].Rotation)
	assert.True(t, f.Instances[0].Active)
}

func TestRenderSkipsBusyRegistry(t *testing.T) {
	sink := &recordingSink{}
	loop := &RenderLoop{Source: lockedSource{}, Interval: time.Hour, Sinks: []SceneSink{sink}}

	assert.False(t, loop.Tick(time.Now()))
	assert.False(t, loop.Tick(time.Now()))
	assert.Equal(t, RenderStats{Skipped: 2}, loop.Stats())
	assert.Zero(t, sink.count())
}

func TestRenderSinkErrorDoesNotStopOthers(t *testing.T) {
	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}
	loop := &RenderLoop{Source: ingest.NewRegistry(), Interval: time.Hour, Sinks: []SceneSink{failing, ok}}

	require.True(t, loop.Tick(time.Now()))
	require.True(t, loop.Tick(time.Now()))
	assert.Equal(t, 2, ok.count())
	assert.Equal(t, uint64(2), ok.frames[1].Seq)
	assert.Empty(t, ok.frames[0].Instances)
}

func TestRenderRunTicksUntilCancel(t *testing.T) {
	sink := &recordingSink{}
	loop := &RenderLoop{Source: ingest.NewRegistry(), Interval: 2 * time.Millisecond, Sinks: []SceneSink{sink}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMsg struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeMQTT records publishes; other methods are not used. A non-nil block
// stalls Publish until it is closed, like a broker that stopped reading.
type fakeMQTT struct {
	mqtt.Client
	err   error
	block chan struct{}

	mu        sync.Mutex
	published []publishedMsg
}

func (c *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMsg{topic: topic, retained: retained, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func (c *fakeMQTT) messages() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMsg(nil), c.published...)
}

func runSceneMQTT(t *testing.T, sink *SceneMQTT) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSceneMQTTPublishesRetainedJSON(t *testing.T) {
	client := &fakeMQTT{}
	sink := NewSceneMQTT(client, "motion/scene")
	runSceneMQTT(t, sink)

	f := scene.Frame{Seq: 7, Instances: []scene.Instance{{ID: netip.MustParseAddr("10.0.0.3"), Shape: ingest.Cube, Scale: 5}}}
	require.NoError(t, sink.PublishScene(f))

	require.Eventually(t, func() bool { return len(client.messages()) == 1 }, time.Second, time.Millisecond)
	msg := client.messages()[0]
	assert.Equal(t, "motion/scene", msg.topic)
	assert.True(t, msg.retained)

	var back scene.Frame
	require.NoError(t, json.Unmarshal(msg.payload, &back))
	assert.Equal(t, uint64(7), back.Seq)
	assert.Equal(t, f.Instances, back.Instances)
}

func TestSceneMQTTReportsBrokerError(t *testing.T) {
	client := &fakeMQTT{err: errors.New("not connected")}
	err := NewSceneMQTT(client, "motion/scene").publish(scene.Frame{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestRenderLoopNotBlockedByStalledBroker(t *testing.T) {
	client := &fakeMQTT{block: make(chan struct{})}
	sink := NewSceneMQTT(client, "motion/scene")
	runSceneMQTT(t, sink)
	loop := &RenderLoop{Source: ingest.NewRegistry(), Interval: time.Hour, Sinks: []SceneSink{sink}}

	ticked := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			loop.Tick(time.Now())
		}
		close(ticked)
	}()
	select {
	case <-ticked:
	case <-time.After(time.Second):
		close(client.block)
		t.Fatal("render ticks blocked on MQTT publish")
	}
	assert.Equal(t, RenderStats{Rendered: 10}, loop.Stats())
	assert.Positive(t, sink.Dropped())

	close(client.block)
	require.Eventually(t, func() bool {
		msgs := client.messages()
		if len(msgs) == 0 {
			return false
		}
		var last scene.Frame
		return json.Unmarshal(msgs[len(msgs)-1].payload, &last) == nil && last.Seq == 10
	}, time.Second, time.Millisecond, "latest frame published once the broker recovers")
	assert.LessOrEqual(t, len(client.messages()), 2)
}
