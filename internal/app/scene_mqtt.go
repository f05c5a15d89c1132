// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_stream/internal/scene"
)

const mqttPublishTimeout = time.Second

// SceneMQTT publishes rendered frames as retained JSON messages. The render
// loop hands frames over through a one-frame buffer and Run publishes them,
// so a stalled broker costs dropped frames instead of render ticks.
type SceneMQTT struct {
	client  mqtt.Client
	topic   string
	latest  chan scene.Frame
	dropped atomic.Uint64
}

// NewSceneMQTT returns a sink publishing to topic on an already connected client.
// Frames are only sent while Run is running.
func NewSceneMQTT(client mqtt.Client, topic string) *SceneMQTT {
	return &SceneMQTT{client: client, topic: topic, latest: make(chan scene.Frame, 1)}
}

// PublishScene queues f, replacing a frame Run has not picked up yet. It
// never blocks. Only the render loop calls it.
func (p *SceneMQTT) PublishScene(f scene.Frame) error {
	for {
		select {
		case p.latest <- f:
			return nil
		default:
		}
		select {
		case <-p.latest:
			p.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many frames were replaced before being published.
func (p *SceneMQTT) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued frames until ctx is done.
func (p *SceneMQTT) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-p.latest:
			if err := p.publish(f); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}
	}
}

func (p *SceneMQTT) publish(f scene.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("scene marshal: %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("MQTT publish %s: timeout", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish %s: %w", p.topic, err)
	}
	return nil
}

// ConnectMQTT connects to broker with auto-reconnect enabled.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt: connection to %s lost: %v", broker, err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}

// SubscribeScene decodes frames on topic and passes them to handle.
func SubscribeScene(client mqtt.Client, topic string, handle func(scene.Frame)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f scene.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("mqtt: %s payload unmarshal error: %v", topic, err)
			return
		}
		handle(f)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, err)
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}
