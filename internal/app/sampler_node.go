// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/sensors"
	"github.com/relabs-tech/motion_stream/internal/stream"
)

// RunSampler runs the sensor node: sampler and forwarder joined by the bounded
// queue. With useMock a synthetic accelerometer is driven by a ticker at the
// configured data rate instead of the LIS3DH interrupt.
func RunSampler(ctx context.Context, cfg *config.Config, useMock bool) error {
	log.Println("starting motion sampler")

	filter, err := motion.NewFilter(cfg.FilterAlpha)
	if err != nil {
		return err
	}
	queue, err := stream.NewChannel[motion.Sample](cfg.ChannelCapacity)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		accel sensors.Accelerometer
		irq   sensors.EdgeWaiter
	)
	if useMock {
		log.Println("using mock accelerometer")
		sig := sensors.NewSignal()
		go sig.Pulse(ctx, time.Second/time.Duration(cfg.XLDataRate))
		accel, irq = sensors.NewMockAccel(), sig
	} else {
		src, err := sensors.OpenAccelSource(cfg)
		if err != nil {
			return fmt.Errorf("sampler: %w", err)
		}
		defer src.Close()
		accel, irq = src.XL, src.IRQ
	}

	sampler := &Sampler{
		Accel:         accel,
		IRQ:           irq,
		Filter:        filter,
		Out:           queue,
		WaitTimeout:   cfg.IRQWaitTimeout,
		StatsInterval: cfg.StatsInterval,
	}
	forwarder := &Forwarder{
		Remote:      cfg.ForwardRemoteAddr,
		In:          queue,
		DialTimeout: cfg.DialTimeout,
		Backoff:     Backoff{Delay: cfg.ReconnectDelay, MaxDelay: cfg.ReconnectMaxDelay},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		sampler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		forwarder.Run(ctx)
	}()
	wg.Wait()

	fs := forwarder.Stats()
	log.Printf("sampler node: %d samples captured, %d frames sent, %d connects",
		sampler.Stats().Samples, fs.Sent, fs.Connects)
	return nil
}
