package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumentra-ai/callagent/cmd/callagent/cmd"
	"github.com/lumentra-ai/callagent/pkg/version"
)

var (
	verbose bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "callagent",
	Short: "Turn Manager voice agent server",
	Long: `callagent runs the Turn Manager that mediates phone calls between a
caller and a streaming LLM, handling barge-in, endpointing, and mid-response
tool calls over pluggable STT/TTS/LLM providers.

Examples:
  callagent serve --stt openai --tts openai --llm openai
  callagent simulate --script conversation.json`,
	Version: version.GetVersionInfo(),
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load")

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewSimulateCmd())
	rootCmd.AddCommand(cmd.NewPluginsCmd())
}

func initConfig() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		if projectRoot := findProjectRoot(); projectRoot != "" {
			if err := godotenv.Load(filepath.Join(projectRoot, envFile)); err != nil && verbose {
				fmt.Fprintf(os.Stderr, "warning: could not load env file %s: %v\n", envFile, err)
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func main() {
	Execute()
}
