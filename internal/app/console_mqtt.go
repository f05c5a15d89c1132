// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/orientation"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

// RunConsoleMQTT prints every scene frame published by the ingest server.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is required")
	}

	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := SubscribeScene(client, cfg.TopicScene, func(f scene.Frame) {
		printScene(os.Stdout, f)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func printScene(w io.Writer, f scene.Frame) {
	fmt.Fprintf(w, "[SCENE] seq=%d clients=%d\n", f.Seq, len(f.Instances))
	for _, in := range f.Instances {
		state := "idle"
		if in.Active {
			state = "live"
		}
		tilt := orientation.FromGravity(motion.Sample{X: in.Rotation.X, Y: in.Rotation.Y, Z: in.Rotation.Z})
		fmt.Fprintf(w, "  %-15s %-8s %s  rot x=%6.2f y=%6.2f z=%6.2f  ROLL=%7.2f PITCH=%7.2f  pos x=%5.1f z=%5.1f  scale=%.2f\n",
			in.ID, in.Shape, state,
			in.Rotation.X, in.Rotation.Y, in.Rotation.Z,
			tilt.Roll, tilt.Pitch,
			in.Position.X, in.Position.Z, in.Scale,
		)
	}
}
