// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_stream/internal/ingest"
	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

func TestWebSceneBeforeFirstFrame(t *testing.T) {
	web := NewWeb(ingest.NewRegistry())
	srv := httptest.NewServer(web.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/scene")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebServesLatestScene(t *testing.T) {
	web := NewWeb(ingest.NewRegistry())
	srv := httptest.NewServer(web.Handler())
	defer srv.Close()

	require.NoError(t, web.PublishScene(scene.Frame{Seq: 1}))
	require.NoError(t, web.PublishScene(scene.Frame{Seq: 2, Instances: []scene.Instance{{Shape: ingest.Pyramid, Scale: 5}}}))

	resp, err := http.Get(srv.URL + "/api/scene")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var f scene.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, uint64(2), f.Seq)
	require.Len(t, f.Instances, 1)
	assert.Equal(t, ingest.Pyramid, f.Instances[0].Shape)
}

func TestWebListsClients(t *testing.T) {
	reg := ingest.NewRegistry(ingest.WithShapePicker(func() ingest.Shape { return ingest.Cube }))
	b := netip.MustParseAddr("10.0.0.9")
	a := netip.MustParseAddr("10.0.0.2")
	reg.Attach(b)
	reg.Attach(a)
	reg.UpdateRotation(a, motion.Sample{X: 1})
	reg.Detach(b)

	srv := httptest.NewServer(NewWeb(reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/clients")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []ingest.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, motion.Sample{X: 1}, got[0].Rotation)
	assert.Equal(t, 1, got[0].Active)
	assert.Equal(t, b, got[1].ID)
	assert.Equal(t, 0, got[1].Active)
}

func TestWebPushesFramesOverWebSocket(t *testing.T) {
	web := NewWeb(ingest.NewRegistry())
	srv := httptest.NewServer(web.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the handler registers the client after the upgrade completes
	require.Eventually(t, func() bool {
		web.clientsMu.Lock()
		defer web.clientsMu.Unlock()
		return len(web.clients) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, web.PublishScene(scene.Frame{Seq: 42}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f scene.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, uint64(42), f.Seq)

	conn.Close()
	require.Eventually(t, func() bool {
		web.clientsMu.Lock()
		defer web.clientsMu.Unlock()
		return len(web.clients) == 0
	}, time.Second, time.Millisecond)
}
