package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lumentra-ai/callagent/pkg/events"
	"github.com/lumentra-ai/callagent/pkg/job"
	"github.com/lumentra-ai/callagent/pkg/manager"
	"github.com/lumentra-ai/callagent/pkg/media/livekit"
	"github.com/lumentra-ai/callagent/pkg/metrics"
	"github.com/lumentra-ai/callagent/pkg/session"
)

// serveOptions holds serve's resolved flags.
type serveOptions struct {
	addr string

	sttName, ttsName, llmName string

	livekitURL string

	natsURL string

	redisAddr   string
	redisPrefix string
	snapshotTTL time.Duration

	escalationPhone string
	maxCallDuration time.Duration
}

// NewServeCmd runs the Turn Manager as an HTTP server: it exposes a
// dispatch endpoint that starts a Manager for an already-established
// LiveKit room (URL, token and room name are handed to it by whatever
// telephony bridge places the call), plus a Prometheus /metrics
// endpoint and a health check.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Turn Manager server",
		Long: `serve starts an HTTP server that accepts call-dispatch requests and
runs one Turn Manager actor per call over the configured STT/TTS/LLM
providers.

Examples:
  callagent serve --addr :8080 --stt openai --tts openai --llm openai
  callagent serve --nats-url nats://localhost:4222 --redis-addr localhost:6379`,
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.sttName, "stt", "openai", "STT plugin name")
	cmd.Flags().StringVar(&opts.ttsName, "tts", "openai", "TTS plugin name")
	cmd.Flags().StringVar(&opts.llmName, "llm", "openai", "LLM plugin name")
	cmd.Flags().StringVar(&opts.livekitURL, "livekit-url", os.Getenv("LIVEKIT_URL"), "LiveKit server URL")
	cmd.Flags().StringVar(&opts.natsURL, "nats-url", os.Getenv("NATS_URL"), "NATS server URL for lifecycle events (optional)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for session snapshots (optional)")
	cmd.Flags().StringVar(&opts.redisPrefix, "redis-prefix", "callagent", "Redis key prefix for session snapshots")
	cmd.Flags().DurationVar(&opts.snapshotTTL, "snapshot-ttl", 24*time.Hour, "TTL for persisted session snapshots")
	cmd.Flags().StringVar(&opts.escalationPhone, "escalation-phone", "", "default number transfer_to_human hands off to")
	cmd.Flags().DurationVar(&opts.maxCallDuration, "max-call-duration", 30*time.Minute, "hard ceiling on a single call's duration")

	return cmd
}

// dispatchRequest is the payload a telephony bridge POSTs to start a call.
type dispatchRequest struct {
	CallID       string `json:"call_id"`
	TenantID     string `json:"tenant_id"`
	SystemPrompt string `json:"system_prompt"`
	Voice        string `json:"voice"`
	Language     string `json:"language"`
	Greeting     string `json:"greeting"`
	CallerPhone  string `json:"caller_phone"`
	RoomName     string `json:"room_name"`
	RoomToken    string `json:"room_token"`
}

type server struct {
	opts      serveOptions
	sessions  *session.Store
	metrics   *metrics.Collectors
	publisher *events.Publisher
	snapshots *session.SnapshotStore
}

func runServe(ctx context.Context, opts *serveOptions) error {
	collectors := metrics.NewCollectors(prometheus.DefaultRegisterer)

	publisher := events.NewNoop()
	if opts.natsURL != "" {
		conn, err := nats.Connect(opts.natsURL)
		if err != nil {
			return fmt.Errorf("serve: connect nats: %w", err)
		}
		defer conn.Close()
		publisher = events.NewPublisher(conn)
	}

	var snapshots *session.SnapshotStore
	if opts.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer client.Close()
		snapshots = session.NewSnapshotStore(client, opts.redisPrefix, opts.snapshotTTL)
	}

	srv := &server{
		opts:      *opts,
		sessions:  session.NewStore(),
		metrics:   collectors,
		publisher: publisher,
		snapshots: snapshots,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/calls", srv.handleDispatch)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{Addr: opts.addr, Handler: mux}
	slog.Info("serve: listening", slog.String("addr", opts.addr))

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.RoomName == "" || req.RoomToken == "" {
		http.Error(w, "room_name and room_token are required", http.StatusBadRequest)
		return
	}

	if err := s.startCall(r.Context(), req); err != nil {
		slog.Error("serve: failed to start call", slog.String("call_id", req.CallID), slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started", "call_id": req.CallID})
}

func (s *server) startCall(ctx context.Context, req dispatchRequest) error {
	sttProv, err := resolveSTT(s.opts.sttName, nil)
	if err != nil {
		return err
	}
	ttsProv, err := resolveTTS(s.opts.ttsName, nil)
	if err != nil {
		return err
	}
	llmProv, err := resolveLLM(s.opts.llmName, nil)
	if err != nil {
		return err
	}

	mediaStream, err := livekit.Connect(ctx, livekit.Config{
		URL:      s.opts.livekitURL,
		Token:    req.RoomToken,
		RoomName: req.RoomName,
	})
	if err != nil {
		return fmt.Errorf("serve: connect media: %w", err)
	}

	// The call's lifetime is governed by a Job: its context enforces the
	// hard call-duration ceiling, and its shutdown hooks keep the job and
	// the session in lockstep regardless of which one ends first.
	callJob, err := job.New(context.Background(), job.Config{
		ID:       req.CallID,
		RoomName: req.RoomName,
		Timeout:  s.opts.maxCallDuration,
	})
	if err != nil {
		return fmt.Errorf("serve: create call job: %w", err)
	}

	sess := session.NewCallSession(callJob.Context.Ctx, req.CallID, session.TenantConfig{
		TenantID:     req.TenantID,
		SystemPrompt: req.SystemPrompt,
		Voice:        req.Voice,
		Language:     req.Language,
		Greeting:     req.Greeting,
	}, req.CallerPhone)
	s.sessions.Put(sess)
	sess.OnCleanup(func(reason string) {
		s.sessions.Remove(sess.ID)
		callJob.Shutdown(reason)
	})
	callJob.Context.OnShutdown(func(reason string) {
		sess.Cleanup(reason)
	})

	toolsReg := defaultTools(s.opts.escalationPhone)
	mgr := manager.NewManager(manager.DefaultConfig(), sess, sttProv, ttsProv, llmProv, toolsReg, mediaStream, s.metrics, s.publisher, s.snapshots)

	go func() {
		if err := mgr.Run(sess.Context()); err != nil {
			slog.Warn("serve: call ended", slog.String("call_id", sess.ID), slog.Any("err", err))
		}
	}()

	return nil
}
