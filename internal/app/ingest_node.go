// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/ingest"
)

// RunIngest runs the server side: the TCP ingestion server, the render loop
// and whichever scene sinks are configured (MQTT when MQTT_BROKER is set,
// HTTP/WebSocket when WEB_SERVER_PORT > 0).
func RunIngest(ctx context.Context, cfg *config.Config) error {
	log.Println("starting motion ingest server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := ingest.NewRegistry()
	loop := &RenderLoop{Source: reg, Interval: cfg.RenderInterval}

	var sceneMQTT *SceneMQTT
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDIngest)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		sceneMQTT = NewSceneMQTT(client, cfg.TopicScene)
		loop.Sinks = append(loop.Sinks, sceneMQTT)
	} else {
		log.Println("MQTT_BROKER not set, scene publishing over MQTT disabled")
	}

	var web *Web
	if cfg.WebServerPort > 0 {
		web = NewWeb(reg)
		loop.Sinks = append(loop.Sinks, web)
	}

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		errOnce.Do(func() { runErr = err })
		cancel()
	}
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	srv := ingest.NewServer(reg, cfg.ReadIdleTimeout)
	run(func() {
		if err := srv.ListenAndServe(ctx, cfg.IngestListenAddr); err != nil {
			fail(err)
		}
	})
	run(func() { loop.Run(ctx) })
	if sceneMQTT != nil {
		run(func() { sceneMQTT.Run(ctx) })
	}
	if web != nil {
		run(func() {
			if err := web.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.WebServerPort)); err != nil {
				fail(fmt.Errorf("web: %w", err))
			}
		})
	}
	if cfg.SessionEvictAfter > 0 {
		run(func() { reg.RunEvictor(ctx, cfg.SessionEvictAfter, cfg.SessionSweepInterval) })
	}

	wg.Wait()
	st := loop.Stats()
	log.Printf("ingest: stopped with %d clients known (%d frames rendered, %d skipped)", reg.Len(), st.Rendered, st.Skipped)
	if sceneMQTT != nil {
		log.Printf("ingest: %d scene frames superseded before MQTT publish", sceneMQTT.Dropped())
	}
	return runErr
}
