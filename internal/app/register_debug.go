// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/sensors"
)

// RunRegisterDebug opens the accelerometer and serves the register debug UI
// on REGISTER_DEBUG_PORT until ctx is cancelled.
func RunRegisterDebug(ctx context.Context, cfg *config.Config) error {
	log.Println("starting LIS3DH register debug tool")

	src, err := sensors.OpenAccelSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	dbg, err := NewRegisterDebug(src.XL, cfg.RegisterDebugAllowedRanges)
	if err != nil {
		return fmt.Errorf("REGISTER_DEBUG_ALLOWED_RANGES: %w", err)
	}
	if len(dbg.allowed) == 0 {
		log.Println("register_debug: no allowed write ranges, read-only mode")
	}

	addr := fmt.Sprintf(":%d", cfg.RegisterDebugPort)
	srv := &http.Server{Addr: addr, Handler: dbg.Handler()}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.Printf("register_debug: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
