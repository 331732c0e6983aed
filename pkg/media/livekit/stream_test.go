package livekit

import (
	"context"
	"testing"
)

func TestConnect_RequiresConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing URL", Config{Token: "t", RoomName: "r"}},
		{"missing token", Config{URL: "wss://test.livekit.io", RoomName: "r"}},
		{"missing room name", Config{URL: "wss://test.livekit.io", Token: "t"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Connect(context.Background(), tc.cfg); err == nil {
				t.Fatal("expected error for incomplete config")
			}
		})
	}
}
