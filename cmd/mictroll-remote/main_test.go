// ABOUTME: Tests for remote CLI argument parsing
// ABOUTME: Tests command words and key=value parameter assignments
package main

import (
	"testing"

	"github.com/mictroll/mictroll-go/internal/remote"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args    []string
		msgType string
		wantErr bool
	}{
		{[]string{"status"}, remote.TypeStatusGet, false},
		{[]string{"start"}, remote.TypeSessionStart, false},
		{[]string{"stop"}, remote.TypeSessionStop, false},
		{[]string{"reset"}, remote.TypeParamsReset, false},
		{[]string{"set", "break_chance=0.3"}, remote.TypeParamsSet, false},
		{[]string{"set"}, "", true},
		{[]string{"set", "oops"}, "", true},
		{[]string{"dance"}, "", true},
	}
	for _, tt := range tests {
		msgType, _, err := parseCommand(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("%v: expected error=%v, got %v", tt.args, tt.wantErr, err)
			continue
		}
		if msgType != tt.msgType {
			t.Errorf("%v: expected %q, got %q", tt.args, tt.msgType, msgType)
		}
	}
}

func TestParseSetValues(t *testing.T) {
	_, payload, err := parseCommand([]string{"set", "bit_crush=8", "bass_boost=0.5", "noise_type=white"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	patch := payload.(map[string]interface{})

	if v, ok := patch["bit_crush"].(int); !ok || v != 8 {
		t.Errorf("expected int 8, got %#v", patch["bit_crush"])
	}
	if v, ok := patch["bass_boost"].(float64); !ok || v != 0.5 {
		t.Errorf("expected float 0.5, got %#v", patch["bass_boost"])
	}
	if v, ok := patch["noise_type"].(string); !ok || v != "white" {
		t.Errorf("expected string white, got %#v", patch["noise_type"])
	}
}
