package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	llmfake "github.com/lumentra-ai/callagent/pkg/ai/llm/fake"
	"github.com/lumentra-ai/callagent/pkg/ai/stt"
	sttfake "github.com/lumentra-ai/callagent/pkg/ai/stt/fake"
	"github.com/lumentra-ai/callagent/pkg/ai/tts"
	ttsfake "github.com/lumentra-ai/callagent/pkg/ai/tts/fake"
	"github.com/lumentra-ai/callagent/pkg/audio/wav"
	"github.com/lumentra-ai/callagent/pkg/manager"
	mediafake "github.com/lumentra-ai/callagent/pkg/media/fake"
	"github.com/lumentra-ai/callagent/pkg/rtc"
	"github.com/lumentra-ai/callagent/pkg/session"
)

// script is the on-disk format simulate reads: a JSON object with an
// optional system prompt and greeting, plus the list of caller utterances,
// each spoken as one final transcript.
type script struct {
	SystemPrompt string   `json:"system_prompt"`
	Greeting     string   `json:"greeting"`
	Utterances   []string `json:"utterances"`
}

// NewSimulateCmd drives a Manager against scripted caller utterances
// using the fake STT/TTS/LLM providers, so the turn-taking logic can be
// exercised from a terminal without real credentials or a phone call.
func NewSimulateCmd() *cobra.Command {
	var (
		scriptPath string
		turnPause  time.Duration
	)

	var recordPath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scripted conversation through the Turn Manager",
		Long: `simulate drives a Manager with fake STT/TTS/LLM providers against a
JSON script of caller utterances and prints every chunk the assistant
would have spoken, in order, marking continuations.

Example:
  callagent simulate --script conversation.json --record out.wav`,
		RunE: func(c *cobra.Command, args []string) error {
			return runSimulate(scriptPath, turnPause, recordPath)
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "path to a JSON script file (required)")
	cmd.Flags().DurationVar(&turnPause, "turn-pause", 400*time.Millisecond, "pause between scripted utterances")
	cmd.Flags().StringVar(&recordPath, "record", "", "optional WAV file to write the synthesized call audio to")
	_ = cmd.MarkFlagRequired("script")

	return cmd
}

func runSimulate(scriptPath string, turnPause time.Duration, recordPath string) error {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("simulate: read script: %w", err)
	}
	var sc script
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("simulate: parse script: %w", err)
	}
	if sc.SystemPrompt == "" {
		sc.SystemPrompt = "You are a helpful receptionist."
	}

	turns := make([]llmfake.Turn, 0, len(sc.Utterances))
	for range sc.Utterances {
		turns = append(turns, llmfake.TextTurn("Thanks, I can help with that."))
	}
	if len(turns) == 0 {
		turns = append(turns, llmfake.TextTurn("Thanks, I can help with that."))
	}

	sttProv := sttfake.NewFakeSTT()
	ttsProv := ttsfake.NewFakeTTS()
	llmProv := llmfake.NewFakeLLM(turns...)
	sttW := &capturingSTT{FakeSTT: sttProv}
	ttsW := &capturingTTS{FakeTTS: ttsProv}

	sess := session.NewCallSession(context.Background(), "simulated-call", session.TenantConfig{
		TenantID:     "simulate",
		SystemPrompt: sc.SystemPrompt,
		Voice:        "alloy",
		Language:     "en-US",
		Greeting:     sc.Greeting,
	}, "+10000000000")

	mediaStream := mediafake.NewStream()
	toolsReg := defaultTools("")
	cfg := manager.DefaultConfig()
	mgr := manager.NewManager(cfg, sess, sttW, ttsW, llmProv, toolsReg, mediaStream, nil, nil, nil)

	go func() { _ = mgr.Run(context.Background()) }()

	waitFor(func() bool { return sttW.stream != nil }, 2*time.Second)
	spokenCount := 0
	printNewChunks := func() {
		conn := ttsW.connection()
		if conn == nil {
			return
		}
		spoken := conn.Spoken()
		for ; spokenCount < len(spoken); spokenCount++ {
			chunk := spoken[spokenCount]
			mark := "fresh"
			if chunk.Continuation {
				mark = "cont."
			}
			fmt.Printf("[assistant %s] %s\n", mark, chunk.Text)
		}
	}

	waitFor(func() bool { return len(ttsW.spokenOrNil()) > 0 }, 2*time.Second)
	printNewChunks()

	for _, utterance := range sc.Utterances {
		time.Sleep(turnPause)
		fmt.Printf("[caller] %s\n", utterance)
		if sttW.stream != nil {
			sttW.stream.SpeechStarted()
			sttW.stream.Final(utterance)
			sttW.stream.SpeechEnded()
		}
		waitFor(func() bool { return len(ttsW.spokenOrNil()) > spokenCount }, 2*time.Second)
		printNewChunks()
	}

	time.Sleep(turnPause)
	sess.Cleanup("simulation complete")

	if recordPath != "" {
		if err := writeRecording(recordPath, mediaStream.Sent()); err != nil {
			return fmt.Errorf("simulate: record audio: %w", err)
		}
		fmt.Printf("wrote %s\n", recordPath)
	}

	return nil
}

// writeRecording dumps the frames the Manager sent to the media stream
// (the synthesized call audio) to a WAV file for manual inspection.
func writeRecording(path string, frames []rtc.AudioFrame) error {
	w, err := wav.NewWriter(path, 48000, 1, 16)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := w.WriteFrame(frame); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// capturingSTT wraps FakeSTT to remember the single stream it hands out,
// since Manager owns the stream internally and never exposes it.
type capturingSTT struct {
	*sttfake.FakeSTT
	stream *sttfake.FakeSTTStream
}

func (c *capturingSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	s, err := c.FakeSTT.NewStream(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.stream = s.(*sttfake.FakeSTTStream)
	return s, nil
}

// capturingTTS wraps FakeTTS to remember the single connection it hands
// out. The concrete connection type is unexported by the fake package,
// so it's accessed through the structurally-satisfied spokenLister.
type capturingTTS struct {
	*ttsfake.FakeTTS
	conn tts.Connection
}

type spokenLister interface {
	Spoken() []ttsfake.SpokenChunk
	Cancelled() bool
}

func (c *capturingTTS) Connect(ctx context.Context, opts tts.ConnectOptions) (tts.Connection, error) {
	conn, err := c.FakeTTS.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func (c *capturingTTS) connection() spokenLister {
	if c.conn == nil {
		return nil
	}
	return c.conn.(spokenLister)
}

func (c *capturingTTS) spokenOrNil() []ttsfake.SpokenChunk {
	conn := c.connection()
	if conn == nil {
		return nil
	}
	return conn.Spoken()
}
