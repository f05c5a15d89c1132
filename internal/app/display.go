// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

const (
	oledWidth  = 128
	oledHeight = 64
	// lines of basicfont.Face7x13 that fit on the panel
	oledLines = 4
	oledLineH = 13
	// scene frames older than this are shown as stale
	sceneStaleAfter = 2 * time.Second
)

// sceneState holds the latest scene received over MQTT.
type sceneState struct {
	mu       sync.RWMutex
	frame    scene.Frame
	have     bool
	received time.Time
}

func (s *sceneState) set(f scene.Frame) {
	s.mu.Lock()
	s.frame = f
	s.have = true
	s.received = time.Now()
	s.mu.Unlock()
}

// RunDisplay shows the live scene on the SSD1306 OLED: client count and the
// shape and rotation of the first clients.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("display: MQTT_BROKER is required")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: %s initialized", dev)

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"", " Motion Stream", " waiting for", " scene..."}), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	state := &sceneState{}
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	if err := SubscribeScene(client, cfg.TopicScene, state.set); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.DisplayUpdateInterval)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			state.mu.RLock()
			f, have, received := state.frame, state.have, state.received
			state.mu.RUnlock()

			stale := have && now.Sub(received) > sceneStaleAfter
			if err := dev.Draw(dev.Bounds(), renderLines(sceneLines(f, have, stale)), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// sceneLines formats a frame for the panel, at most oledLines lines of
// 18 characters.
func sceneLines(f scene.Frame, have, stale bool) []string {
	if !have {
		return []string{"Scene", "Waiting..."}
	}

	live := 0
	for _, in := range f.Instances {
		if in.Active {
			live++
		}
	}
	header := fmt.Sprintf("Clients:%d live:%d", len(f.Instances), live)
	if stale {
		header = fmt.Sprintf("Clients:%d STALE", len(f.Instances))
	}
	lines := []string{header}

	rows := oledLines - 1
	for i, in := range f.Instances {
		if i == rows-1 && len(f.Instances) > rows {
			lines = append(lines, fmt.Sprintf("+%d more", len(f.Instances)-i))
			break
		}
		shape := in.Shape.String()
		lines = append(lines, fmt.Sprintf("%c%+.2f%+.2f%+.2f",
			shape[0]-'a'+'A', in.Rotation.X, in.Rotation.Y, in.Rotation.Z))
	}
	return lines
}

// renderLines draws text lines into a panel-sized 1-bit image.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= oledLines {
			break
		}
		drawer.Dot = fixed.P(0, (i+1)*oledLineH)
		drawer.DrawString(line)
	}
	return img
}
