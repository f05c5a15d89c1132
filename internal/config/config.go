// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Accelerometer hardware
	XLI2CBus   string // periph bus name, "" selects the first bus
	XLI2CAddr  uint16 // 0x18 (SA0 low) or 0x19 (SA0 high)
	XLIRQPin   string // GPIO wired to LIS3DH INT1 (data ready)
	XLDataRate int    // Hz: 1, 10, 25, 50, 100, 200, 400
	XLRangeG   int    // full scale: 2, 4, 8, 16

	// Sampler
	FilterAlpha     float32 // exponential smoothing weight, (0, 1]
	ChannelCapacity int     // sampler -> forwarder queue depth
	IRQWaitTimeout  time.Duration
	StatsInterval   time.Duration

	// Forwarder
	ForwardRemoteAddr string // host:port of the ingestion server
	DialTimeout       time.Duration
	ReconnectDelay    time.Duration // 0 retries immediately
	ReconnectMaxDelay time.Duration // > ReconnectDelay enables doubling up to this cap

	// Ingestion server
	IngestListenAddr     string
	ReadIdleTimeout      time.Duration // 0 keeps silent peers forever
	SessionEvictAfter    time.Duration // 0 never evicts
	SessionSweepInterval time.Duration

	// Render loop
	RenderInterval time.Duration

	// MQTT
	MQTTBroker          string // empty disables scene publishing
	MQTTClientIDIngest  string
	MQTTClientIDDisplay string
	MQTTClientIDConsole string
	TopicScene          string

	// Web Server
	WebServerPort int // 0 disables the HTTP/WebSocket API

	// Register debug
	RegisterDebugPort          int
	RegisterDebugAllowedRanges string // e.g. "0x20-0x25,0x30-0x33"

	// Display
	DisplayI2CBus         string // SSD1306 answers on 0x3C
	DisplayUpdateInterval time.Duration
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		XLI2CBus:   "",
		XLI2CAddr:  0x18,
		XLIRQPin:   "GPIO17",
		XLDataRate: 400,
		XLRangeG:   2,

		FilterAlpha:     0.02,
		ChannelCapacity: 10,
		IRQWaitTimeout:  500 * time.Millisecond,
		StatsInterval:   10 * time.Second,

		ForwardRemoteAddr: "10.0.0.1:8080",
		DialTimeout:       5 * time.Second,
		ReconnectDelay:    time.Second,
		ReconnectMaxDelay: 0,

		IngestListenAddr:     "0.0.0.0:8080",
		ReadIdleTimeout:      0,
		SessionEvictAfter:    0,
		SessionSweepInterval: 30 * time.Second,

		RenderInterval: 16 * time.Millisecond,

		MQTTBroker:          "",
		MQTTClientIDIngest:  "motion-ingest",
		MQTTClientIDDisplay: "motion-display",
		MQTTClientIDConsole: "motion-console",
		TopicScene:          "motion/scene",

		WebServerPort: 8081,

		RegisterDebugPort:          8082,
		RegisterDebugAllowedRanges: "",

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 250 * time.Millisecond,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys not present in the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// Accelerometer hardware
	case "XL_I2C_BUS":
		c.XLI2CBus = value
	case "XL_I2C_ADDR":
		c.XLI2CAddr, err = parseAddr(key, value)
	case "XL_IRQ_PIN":
		c.XLIRQPin = value
	case "XL_DATA_RATE_HZ":
		c.XLDataRate, err = parseInt(key, value)
	case "XL_RANGE_G":
		c.XLRangeG, err = parseInt(key, value)

	// Sampler
	case "FILTER_ALPHA":
		alpha, perr := strconv.ParseFloat(value, 32)
		if perr != nil {
			return fmt.Errorf("invalid FILTER_ALPHA %q: %w", value, perr)
		}
		c.FilterAlpha = float32(alpha)
	case "CHANNEL_CAPACITY":
		c.ChannelCapacity, err = parseInt(key, value)
	case "IRQ_WAIT_TIMEOUT_MS":
		c.IRQWaitTimeout, err = parseMillis(key, value)
	case "STATS_INTERVAL_MS":
		c.StatsInterval, err = parseMillis(key, value)

	// Forwarder
	case "FORWARD_REMOTE_ADDR":
		c.ForwardRemoteAddr = value
	case "DIAL_TIMEOUT_MS":
		c.DialTimeout, err = parseMillis(key, value)
	case "RECONNECT_DELAY_MS":
		c.ReconnectDelay, err = parseMillis(key, value)
	case "RECONNECT_MAX_DELAY_MS":
		c.ReconnectMaxDelay, err = parseMillis(key, value)

	// Ingestion server
	case "INGEST_LISTEN_ADDR":
		c.IngestListenAddr = value
	case "READ_IDLE_TIMEOUT_MS":
		c.ReadIdleTimeout, err = parseMillis(key, value)
	case "SESSION_EVICT_AFTER_MS":
		c.SessionEvictAfter, err = parseMillis(key, value)
	case "SESSION_SWEEP_INTERVAL_MS":
		c.SessionSweepInterval, err = parseMillis(key, value)

	// Render loop
	case "RENDER_INTERVAL_MS":
		c.RenderInterval, err = parseMillis(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_INGEST":
		c.MQTTClientIDIngest = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_SCENE":
		c.TopicScene = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Register debug
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value)
	case "REGISTER_DEBUG_ALLOWED_RANGES":
		c.RegisterDebugAllowedRanges = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL_MS":
		c.DisplayUpdateInterval, err = parseMillis(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if !(c.FilterAlpha > 0 && c.FilterAlpha <= 1) {
		return fmt.Errorf("FILTER_ALPHA must be in (0, 1], got %v", c.FilterAlpha)
	}
	if c.ChannelCapacity < 1 {
		return fmt.Errorf("CHANNEL_CAPACITY must be >= 1, got %d", c.ChannelCapacity)
	}
	switch c.XLDataRate {
	case 1, 10, 25, 50, 100, 200, 400:
	default:
		return fmt.Errorf("XL_DATA_RATE_HZ must be one of 1,10,25,50,100,200,400, got %d", c.XLDataRate)
	}
	switch c.XLRangeG {
	case 2, 4, 8, 16:
	default:
		return fmt.Errorf("XL_RANGE_G must be 2, 4, 8 or 16, got %d", c.XLRangeG)
	}
	if c.XLIRQPin == "" {
		return fmt.Errorf("XL_IRQ_PIN is required")
	}
	if c.ForwardRemoteAddr == "" {
		return fmt.Errorf("FORWARD_REMOTE_ADDR is required")
	}
	if c.IngestListenAddr == "" {
		return fmt.Errorf("INGEST_LISTEN_ADDR is required")
	}
	if c.ReconnectMaxDelay != 0 && c.ReconnectMaxDelay < c.ReconnectDelay {
		return fmt.Errorf("RECONNECT_MAX_DELAY_MS (%v) is below RECONNECT_DELAY_MS (%v)", c.ReconnectMaxDelay, c.ReconnectDelay)
	}
	if c.RenderInterval <= 0 {
		return fmt.Errorf("RENDER_INTERVAL_MS must be > 0")
	}
	if c.SessionEvictAfter > 0 && c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL_MS must be > 0 when SESSION_EVICT_AFTER_MS is set")
	}
	if c.TopicScene == "" {
		return fmt.Errorf("TOPIC_SCENE is required")
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return uint16(addr), nil
}
