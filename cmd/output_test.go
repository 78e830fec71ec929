// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"specverb/internal/config"
	"specverb/internal/params"
)

func TestPrintParams(t *testing.T) {
	store := params.NewStore()
	if err := store.Set(params.WetDry, 0.25); err != nil {
		t.Fatal(err)
	}
	if err := store.SetBool(params.Freeze, true); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := PrintParams(&buf, store); err != nil {
		t.Fatalf("PrintParams() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1+len(params.Definitions()) {
		t.Fatalf("got %d lines, want header plus %d rows:\n%s", len(lines), len(params.Definitions()), buf.String())
	}
	tests := []struct {
		row    int
		fields []string
	}{
		{1, []string{"wet_dry", "Wet/Dry", "0.00..1.00", "0.50", "0.25"}},
		{2, []string{"time", "Time", "0.10..10.00", "2.00", "2.00"}},
		{9, []string{"freeze", "Freeze", "off|on", "off", "on"}},
	}
	for _, tt := range tests {
		got := strings.Fields(lines[tt.row])
		if strings.Join(got, " ") != strings.Join(tt.fields, " ") {
			t.Errorf("row %d = %q, want %q", tt.row, got, tt.fields)
		}
	}
}

func TestPrintAudioConfig(t *testing.T) {
	cfg := config.AudioConfig{
		InputDevice:     2,
		OutputDevice:    -1,
		SampleRate:      96000,
		FramesPerBuffer: 256,
		Channels:        2,
	}

	var buf bytes.Buffer
	if err := PrintAudioConfig(&buf, cfg); err != nil {
		t.Fatalf("PrintAudioConfig() error: %v", err)
	}

	var decoded struct {
		Audio config.AudioConfig `yaml:"audio"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}
	if decoded.Audio != cfg {
		t.Errorf("round trip = %+v, want %+v", decoded.Audio, cfg)
	}
	if !strings.Contains(buf.String(), "input_device: 2") {
		t.Errorf("output should use config keys:\n%s", buf.String())
	}
}
