// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/sensors"
)

// RegisterDevice is the register-level access the debug tool needs.
// *sensors.LIS3DH implements it.
type RegisterDevice interface {
	ReadRegister(reg byte) (byte, error)
	WriteRegister(reg, value byte) error
	ReadAllRegisters() (map[byte]byte, error)
	ReadAccel() (motion.Sample, error)
}

// RegisterRange is an inclusive register address range.
type RegisterRange struct {
	From, To byte
}

// ParseRegisterRanges parses a list like "0x20-0x25,0x2E,0x30-0x33".
// An empty string yields no ranges.
func ParseRegisterRanges(s string) ([]RegisterRange, error) {
	var out []RegisterRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseRegAddr(lo)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = parseRegAddr(hi); err != nil {
				return nil, err
			}
		}
		if to < from {
			return nil, fmt.Errorf("register range %q is reversed", part)
		}
		out = append(out, RegisterRange{From: from, To: to})
	}
	return out, nil
}

func parseRegAddr(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	return byte(v), nil
}

// RegisterDebug serves the LIS3DH register map over WebSocket. Writes are
// limited to RW registers inside the allowed ranges; with no ranges the tool
// is read-only.
type RegisterDebug struct {
	dev     RegisterDevice
	allowed []RegisterRange
	regs    []sensors.RegisterInfo
}

// NewRegisterDebug returns a debug handler for dev. allowedRanges uses the
// ParseRegisterRanges syntax.
func NewRegisterDebug(dev RegisterDevice, allowedRanges string) (*RegisterDebug, error) {
	allowed, err := ParseRegisterRanges(allowedRanges)
	if err != nil {
		return nil, err
	}
	return &RegisterDebug{dev: dev, allowed: allowed, regs: sensors.LIS3DHRegisterMap()}, nil
}

// Handler returns the HTTP routes.
func (d *RegisterDebug) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.HandleWS)
	mux.HandleFunc("GET /api/accel", d.HandleAccelData)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})
	return mux
}

// RegisterCmd is a WebSocket request.
type RegisterCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is a WebSocket reply.
type RegisterResponse struct {
	Type        string              `json:"type"` // "register_map", "register_data", "export_config", "error"
	Address     string              `json:"addr,omitempty"`
	Value       string              `json:"value,omitempty"`
	Registers   map[string]string   `json:"registers,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Message     string              `json:"message,omitempty"`
	RegisterMap []RegisterMapEntry  `json:"register_map,omitempty"`
	Config      *RegisterConfigFile `json:"config,omitempty"`
	Filename    string              `json:"filename,omitempty"`
	Writable    map[string]bool     `json:"writable,omitempty"`
}

// RegisterMapEntry is sensors.RegisterInfo with the address rendered as hex.
type RegisterMapEntry struct {
	Address string `json:"address"`
	sensors.RegisterInfo
}

// RegisterConfigFile is the JSON structure for an exported register dump.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// HandleWS handles one register debugging session.
func (d *RegisterDebug) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(d.dispatch(cmd)); err != nil {
			log.Printf("register_debug: websocket write error: %v", err)
			return
		}
	}
}

func (d *RegisterDebug) dispatch(cmd RegisterCmd) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return d.registerMap()
	case "read":
		return d.read(cmd)
	case "read_all":
		return d.readAll()
	case "write":
		return d.write(cmd)
	case "export_config":
		return d.exportConfig()
	default:
		return errorResponse("unknown action: %q", cmd.Action)
	}
}

func (d *RegisterDebug) read(cmd RegisterCmd) RegisterResponse {
	addr, err := parseRegAddr(cmd.Address)
	if err != nil {
		return errorResponse("%v", err)
	}
	value, err := d.dev.ReadRegister(addr)
	if err != nil {
		return errorResponse("read error: %v", err)
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebug) readAll() RegisterResponse {
	values, err := d.dev.ReadAllRegisters()
	if err != nil {
		return errorResponse("read all error: %v", err)
	}
	return RegisterResponse{
		Type:      "register_data",
		Registers: hexMap(values),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebug) write(cmd RegisterCmd) RegisterResponse {
	addr, err := parseRegAddr(cmd.Address)
	if err != nil {
		return errorResponse("%v", err)
	}
	value, err := parseRegAddr(cmd.Value)
	if err != nil {
		return errorResponse("invalid value %q", cmd.Value)
	}
	if !d.writable(addr) {
		return errorResponse("register %s not in allowed write ranges", hexByte(addr))
	}
	if err := d.dev.WriteRegister(addr, value); err != nil {
		return errorResponse("write error: %v", err)
	}
	log.Printf("register_debug: wrote %s to %s", hexByte(value), hexByte(addr))
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *RegisterDebug) exportConfig() RegisterResponse {
	values, err := d.dev.ReadAllRegisters()
	if err != nil {
		return errorResponse("export error: %v", err)
	}
	now := time.Now()
	return RegisterResponse{
		Type:    "export_config",
		Message: "config exported",
		Config: &RegisterConfigFile{
			Version:   1,
			Device:    "lis3dh",
			Timestamp: now.Format(time.RFC3339),
			Registers: hexMap(values),
		},
		Filename: fmt.Sprintf("lis3dh_%s_registers.json", now.Format("20060102_150405")),
	}
}

func (d *RegisterDebug) registerMap() RegisterResponse {
	entries := make([]RegisterMapEntry, len(d.regs))
	writable := make(map[string]bool)
	for i, r := range d.regs {
		entries[i] = RegisterMapEntry{Address: r.Hex(), RegisterInfo: r}
		if d.writable(r.Address) {
			writable[r.Hex()] = true
		}
	}
	return RegisterResponse{Type: "register_map", RegisterMap: entries, Writable: writable}
}

// writable reports whether addr is a RW register inside an allowed range.
func (d *RegisterDebug) writable(addr byte) bool {
	i := slices.IndexFunc(d.regs, func(r sensors.RegisterInfo) bool { return r.Address == addr })
	if i < 0 || d.regs[i].Access != "RW" {
		return false
	}
	for _, rng := range d.allowed {
		if addr >= rng.From && addr <= rng.To {
			return true
		}
	}
	return false
}

// HandleAccelData serves one live acceleration reading.
func (d *RegisterDebug) HandleAccelData(w http.ResponseWriter, r *http.Request) {
	s, err := d.dev.ReadAccel()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, s)
}

func errorResponse(format string, args ...any) RegisterResponse {
	return RegisterResponse{Type: "error", Message: fmt.Sprintf(format, args...)}
}

func hexByte(b byte) string { return fmt.Sprintf("0x%02X", b) }

func hexMap(values map[byte]byte) map[string]string {
	out := make(map[string]string, len(values))
	for addr, v := range values {
		out[hexByte(addr)] = hexByte(v)
	}
	return out
}
