// Package fake registers fake STT/TTS/LLM providers with the plugin
// registry so a tenant config can select "fake" to run the pipeline
// without any real provider credentials.
package fake

import (
	llmfake "github.com/lumentra-ai/callagent/pkg/ai/llm/fake"
	sttfake "github.com/lumentra-ai/callagent/pkg/ai/stt/fake"
	ttsfake "github.com/lumentra-ai/callagent/pkg/ai/tts/fake"
	"github.com/lumentra-ai/callagent/pkg/plugin"
)

func newFakeSTT(cfg map[string]any) (any, error) {
	return sttfake.NewFakeSTT(), nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	return ttsfake.NewFakeTTS(), nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	return llmfake.NewFakeLLM(llmfake.TextTurn("This is a fake response.")), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Test-driven fake STT provider whose events are injected directly",
		Version:     "1.0.0",
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Fake TTS provider that records spoken chunks for assertions",
		Version:     "1.0.0",
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "llm",
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake LLM provider driven by a scripted turn sequence",
		Version:     "1.0.0",
	})
}
