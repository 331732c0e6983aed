package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumentra-ai/callagent/pkg/plugin"
)

// NewPluginsCmd lists the STT/TTS/LLM providers registered with the
// plugin registry, so an operator can see what --stt/--tts/--llm accept
// without reading source.
func NewPluginsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered provider plugins",
		Example: `  callagent plugins
  callagent plugins --kind stt`,
		RunE: func(c *cobra.Command, args []string) error {
			for _, p := range plugin.List(kind) {
				fmt.Printf("%-6s %-10s %s\n", p.Kind, p.Name, p.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by plugin kind (stt, tts, llm)")
	return cmd
}
