package plugin_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	"github.com/lumentra-ai/callagent/pkg/plugin"
	_ "github.com/lumentra-ai/callagent/pkg/plugin/fake"   // register fake providers
	_ "github.com/lumentra-ai/callagent/pkg/plugin/openai" // register OpenAI providers
)

func TestPluginIntegration_FakeSTT(t *testing.T) {
	factory, exists := plugin.Get("stt", "fake")
	if !exists {
		t.Fatal("fake STT plugin not found")
	}

	instance, err := factory(map[string]any{})
	if err != nil {
		t.Fatalf("failed to create STT instance: %v", err)
	}

	sttInstance, ok := instance.(stt.STT)
	if !ok {
		t.Fatal("plugin instance does not implement stt.STT")
	}

	if !sttInstance.Capabilities().Streaming {
		t.Error("expected fake STT to report streaming support")
	}

	stream, err := sttInstance.NewStream(context.Background(), stt.StreamConfig{SampleRate: 16000, NumChannels: 1, Lang: "en-US"})
	if err != nil {
		t.Fatalf("failed to create STT stream: %v", err)
	}
	if stream == nil {
		t.Error("STT stream should not be nil")
	}
}

func TestPluginIntegration_FakeTTS(t *testing.T) {
	factory, exists := plugin.Get("tts", "fake")
	if !exists {
		t.Fatal("fake TTS plugin not found")
	}

	instance, err := factory(map[string]any{})
	if err != nil {
		t.Fatalf("failed to create TTS instance: %v", err)
	}

	ttsInstance, ok := instance.(tts.TTS)
	if !ok {
		t.Fatal("plugin instance does not implement tts.TTS")
	}
	if len(ttsInstance.Capabilities().SupportedLanguages) == 0 {
		t.Error("expected fake TTS to report supported languages")
	}
}

func TestPluginIntegration_FakeLLM(t *testing.T) {
	factory, exists := plugin.Get("llm", "fake")
	if !exists {
		t.Fatal("fake LLM plugin not found")
	}

	instance, err := factory(map[string]any{})
	if err != nil {
		t.Fatalf("failed to create LLM instance: %v", err)
	}

	llmInstance, ok := instance.(llm.LLM)
	if !ok {
		t.Fatal("plugin instance does not implement llm.LLM")
	}
	if llmInstance.Name() == "" {
		t.Error("expected fake LLM to report a non-empty name")
	}
}

func TestPluginIntegration_OpenAISTTRequiresAPIKey(t *testing.T) {
	factory, exists := plugin.Get("stt", "openai")
	if !exists {
		t.Fatal("openai STT plugin not found")
	}

	if _, err := factory(map[string]any{}); err == nil {
		t.Error("expected error when creating OpenAI STT without an API key")
	} else if !strings.Contains(err.Error(), "API key is required") {
		t.Errorf("unexpected error message: %v", err)
	}

	instance, err := factory(map[string]any{"api_key": "test-key", "model": "whisper-1"})
	if err != nil {
		t.Fatalf("failed to create OpenAI STT instance: %v", err)
	}

	sttInstance, ok := instance.(stt.STT)
	if !ok {
		t.Fatal("plugin instance does not implement stt.STT")
	}
	caps := sttInstance.Capabilities()
	if caps.InterimResults {
		t.Error("expected OpenAI STT to not support interim results")
	}
	if len(caps.SupportedLanguages) == 0 {
		t.Error("expected OpenAI STT to report supported languages")
	}
}

func TestPluginIntegration_PluginListing(t *testing.T) {
	allPlugins := plugin.List("")
	if len(allPlugins) < 6 {
		t.Errorf("expected at least 6 registered plugins (3 fake + 3 openai), got %d", len(allPlugins))
	}

	sttPlugins := plugin.List("stt")
	names := make(map[string]bool)
	for _, p := range sttPlugins {
		names[p.Name] = true
	}
	if !names["fake"] || !names["openai"] {
		t.Errorf("expected both fake and openai STT plugins, got %v", sttPlugins)
	}

	if got := plugin.List("nonexistent"); len(got) != 0 {
		t.Errorf("expected 0 plugins for unknown kind, got %d", len(got))
	}
}
