package cmd

import (
	"fmt"
	"os"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	"github.com/lumentra-ai/callagent/pkg/plugin"

	_ "github.com/lumentra-ai/callagent/pkg/plugin/fake"
	_ "github.com/lumentra-ai/callagent/pkg/plugin/openai"
)

// resolveSTT looks up a registered "stt" plugin by name and builds it
// from the given config, falling back to OPENAI_API_KEY when cfg omits
// api_key — the same convention every openai-backed provider follows.
func resolveSTT(name string, cfg map[string]any) (stt.STT, error) {
	inst, err := resolveProvider("stt", name, cfg)
	if err != nil {
		return nil, err
	}
	p, ok := inst.(stt.STT)
	if !ok {
		return nil, fmt.Errorf("cmd: plugin stt/%s does not implement stt.STT", name)
	}
	return p, nil
}

func resolveTTS(name string, cfg map[string]any) (tts.TTS, error) {
	inst, err := resolveProvider("tts", name, cfg)
	if err != nil {
		return nil, err
	}
	p, ok := inst.(tts.TTS)
	if !ok {
		return nil, fmt.Errorf("cmd: plugin tts/%s does not implement tts.TTS", name)
	}
	return p, nil
}

func resolveLLM(name string, cfg map[string]any) (llm.LLM, error) {
	inst, err := resolveProvider("llm", name, cfg)
	if err != nil {
		return nil, err
	}
	p, ok := inst.(llm.LLM)
	if !ok {
		return nil, fmt.Errorf("cmd: plugin llm/%s does not implement llm.LLM", name)
	}
	return p, nil
}

func resolveProvider(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := plugin.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("cmd: no %s plugin registered under name %q", kind, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	if _, set := cfg["api_key"]; !set {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg["api_key"] = key
		}
	}
	return factory(cfg)
}
