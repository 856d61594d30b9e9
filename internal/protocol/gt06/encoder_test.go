package gt06

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"gt06gateway/internal/core/model"
)

func TestCommandText(t *testing.T) {
	tests := []struct {
		name    string
		command string
		params  map[string]interface{}
		want    string
		wantErr error
	}{
		{name: "engine stop", command: model.CommandEngineStop, want: "Relay,1#"},
		{name: "engine resume", command: model.CommandEngineResume, want: "Relay,0#"},
		{
			name:    "engine stop g109",
			command: model.CommandEngineStop,
			params:  map[string]interface{}{"model": "G109"},
			want:    "DYD#",
		},
		{
			name:    "engine resume alternative",
			command: model.CommandEngineResume,
			params:  map[string]interface{}{"alternative": true, "password": "000000"},
			want:    "HFYD,000000#",
		},
		{name: "reboot", command: model.CommandReboot, want: "RESET,123456#"},
		{name: "factory reset", command: model.CommandFactoryReset, want: "FACTORY,123456#"},
		{
			name:    "timezone",
			command: model.CommandSetTimezone,
			params:  map[string]interface{}{"timezone": float64(-5)},
			want:    "TIMEZONE,123456,-5#",
		},
		{
			name:    "timezone fractional",
			command: model.CommandSetTimezone,
			params:  map[string]interface{}{"timezone": 5.5},
			want:    "TIMEZONE,123456,5.5#",
		},
		{
			name:    "timezone out of range",
			command: model.CommandSetTimezone,
			params:  map[string]interface{}{"timezone": 13},
			wantErr: ErrInvalidParameter,
		},
		{name: "apn default", command: model.CommandSetAPN, want: "APN,123456,internet#"},
		{
			name:    "apn with credentials",
			command: model.CommandSetAPN,
			params:  map[string]interface{}{"apn": "m2m", "username": "user", "apnPassword": "secret"},
			want:    "APN,123456,m2m,user,secret#",
		},
		{name: "server default", command: model.CommandSetServer, want: "SERVER,123456,localhost,5027#"},
		{
			name:    "server",
			command: model.CommandSetServer,
			params:  map[string]interface{}{"server": "gps.example.com", "port": float64(5023)},
			want:    "SERVER,123456,gps.example.com,5023#",
		},
		{
			name:    "server port out of range",
			command: model.CommandSetServer,
			params:  map[string]interface{}{"port": 70000},
			wantErr: ErrInvalidParameter,
		},
		{name: "interval default", command: model.CommandSetInterval, want: "TIMER,123456,30#"},
		{
			name:    "interval too small",
			command: model.CommandSetInterval,
			params:  map[string]interface{}{"interval": 5},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "interval not whole",
			command: model.CommandSetInterval,
			params:  map[string]interface{}{"interval": 30.5},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "interval wrong type",
			command: model.CommandSetInterval,
			params:  map[string]interface{}{"interval": []int{1}},
			wantErr: ErrInvalidParameter,
		},
		{name: "version", command: model.CommandGetVersion, want: "VERSION,123456#"},
		{name: "status", command: model.CommandGetStatus, want: "STATUS,123456#"},
		{
			name:    "custom",
			command: model.CommandCustom,
			params:  map[string]interface{}{"command": "WHERE#"},
			want:    "WHERE#",
		},
		{name: "custom without text", command: model.CommandCustom, wantErr: ErrInvalidParameter},
		{name: "unknown", command: "selfDestruct", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommandText(tt.command, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CommandText() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CommandText() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CommandText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeCommandFrame(t *testing.T) {
	e := NewEncoder()
	raw, err := e.EncodeCommand(model.NewCommand("device-1", model.CommandReboot, nil))
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}

	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Type != MsgCommand0 || f.Index != 1 {
		t.Errorf("type/index = 0x%02X/%d", f.Type, f.Index)
	}

	text := "RESET,123456#"
	if int(f.Payload[0]) != 4+len(text) {
		t.Errorf("command length = %d, want %d", f.Payload[0], 4+len(text))
	}
	if !bytes.Equal(f.Payload[1:5], []byte{0, 0, 0, 0}) {
		t.Errorf("server flag = % X", f.Payload[1:5])
	}
	if string(f.Payload[5:]) != text {
		t.Errorf("text = %q, want %q", f.Payload[5:], text)
	}
	if int(raw[2]) != 1+1+4+len(text)+4 {
		t.Errorf("declared length = %d", raw[2])
	}
}

func TestEncodeTextLanguage(t *testing.T) {
	raw, err := NewEncoder().EncodeText("WHERE#", true)
	if err != nil {
		t.Fatalf("EncodeText() error = %v", err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	tail := f.Payload[len(f.Payload)-2:]
	if binary.BigEndian.Uint16(tail) != 0x0002 {
		t.Errorf("language word = % X", tail)
	}
}

func TestEncodeTextLimits(t *testing.T) {
	e := NewEncoder()
	if _, err := e.EncodeText("", false); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("empty text error = %v", err)
	}
	// 1 + 1 + 4 + 245 + 4 = 255
	if _, err := e.EncodeText(strings.Repeat("A", 245), false); err != nil {
		t.Errorf("longest text error = %v", err)
	}
	if _, err := e.EncodeText(strings.Repeat("A", 246), false); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("oversized text error = %v", err)
	}
	if _, err := e.EncodeText(strings.Repeat("A", 244), true); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("oversized text with language error = %v", err)
	}
}

func TestEncoderIndexWraps(t *testing.T) {
	e := NewEncoder()
	e.index = 0xFFFE

	var got []uint16
	for i := 0; i < 3; i++ {
		raw, err := e.EncodeText("RESET#", false)
		if err != nil {
			t.Fatalf("EncodeText() error = %v", err)
		}
		f, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("ParseFrame() error = %v", err)
		}
		got = append(got, f.Index)
	}

	want := []uint16{0xFFFE, 0xFFFF, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = 0x%04X, want 0x%04X", i, got[i], want[i])
		}
	}
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		header  uint16
		content []byte
	}{
		{"basic ack", HeaderBasic, nil},
		{"extended ack", HeaderExtended, nil},
		{"time response", HeaderBasic, EncodeDateTime(time.Date(2024, 3, 14, 8, 15, 30, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Frame{Header: tt.header, Type: MsgHeartbeat, Index: 0x0A0B}

			raw, err := EncodeResponse(in, MsgHeartbeat, tt.content)
			if err != nil {
				t.Fatalf("EncodeResponse() error = %v", err)
			}
			f, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if f.Extended() != in.Extended() {
				t.Errorf("Extended() = %v, want %v", f.Extended(), in.Extended())
			}
			if f.Type != MsgHeartbeat || f.Index != 0x0A0B {
				t.Errorf("response type 0x%02x index 0x%04x", f.Type, f.Index)
			}
			if !bytes.Equal(f.Payload, tt.content) {
				t.Errorf("payload = % x, want % x", f.Payload, tt.content)
			}
		})
	}
}

func TestEncoderConcurrentIndexesAreUnique(t *testing.T) {
	e := NewEncoder()
	const n = 200

	ch := make(chan uint16, n)
	for i := 0; i < n; i++ {
		go func() {
			ch <- e.nextIndex()
		}()
	}

	seen := make(map[uint16]bool, n)
	for i := 0; i < n; i++ {
		idx := <-ch
		if seen[idx] {
			t.Fatalf("index %d issued twice", idx)
		}
		seen[idx] = true
	}
}
