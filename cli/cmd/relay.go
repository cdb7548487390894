package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/adapter/redis"
	"github.com/pithecene-io/runnel/adapter/socket"
	"github.com/pithecene-io/runnel/adapter/webhook"
	"github.com/pithecene-io/runnel/cli/config"
	"github.com/pithecene-io/runnel/cli/reader"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/iox"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/relay"
	"github.com/pithecene-io/runnel/store"
	"github.com/pithecene-io/runnel/types"
)

// Exit codes for the relay command.
const (
	exitSuccess       = 0
	exitConfigError   = 1
	exitStreamError   = 2
	exitPolicyFailure = 3
)

// serverShutdownTimeout bounds the HTTP server drain after a relay ends.
const serverShutdownTimeout = 5 * time.Second

// RelayCommand returns the relay command.
// This is the only command that writes: it consumes a chunk stream,
// consolidates it incrementally and publishes every transcript update.
func RelayCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source partition key (agent or pipeline name)",
		},
		&cli.StringFlag{
			Name:  "relay-id",
			Usage: "Relay ID (generated when empty)",
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Input format: jsonl, msgpack",
			Value:   string(reader.InputJSONL),
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "Read chunks from a file instead of stdin",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the result summary",
		},
		&cli.DurationFlag{
			Name:  "flush-timeout",
			Usage: "Bound on the termination flush and final publish",
			Value: relay.DefaultFlushTimeout,
		},

		// Consolidation
		&cli.IntFlag{
			Name:  "max-merge-bytes",
			Usage: "Byte cap for a merged text chunk",
			Value: consolidate.DefaultMaxMergeBytes,
		},
		&cli.StringFlag{
			Name:  "unsequenced",
			Usage: "Sort position of chunks without a sequence: last or zero",
			Value: "last",
		},

		// Policy
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Buffering policy: strict, buffered, streaming",
			Value: "strict",
		},
		&cli.IntFlag{
			Name:  "buffer-chunks",
			Usage: "Max buffered chunks (buffered policy)",
		},
		&cli.Int64Flag{
			Name:  "buffer-bytes",
			Usage: "Max buffered bytes (buffered policy)",
		},
		&cli.IntFlag{
			Name:  "flush-count",
			Usage: "Flush after N chunks (streaming policy)",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Flush every interval (streaming policy)",
		},

		// Storage
		&cli.BoolFlag{
			Name:  "storage-final-only",
			Usage: "Persist only the final transcript update",
		},

		// Adapter
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Event bus adapter: webhook, redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint (webhook URL or redis:// URL)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.BoolFlag{
			Name:  "adapter-per-session",
			Usage: "Also publish each session to <channel>:<session> (redis)",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
			Value: 10 * time.Second,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: 3,
		},

		// Socket
		&cli.StringFlag{
			Name:  "listen",
			Usage: "HTTP listen address for WebSocket endpoints (e.g. :8080)",
		},
		&cli.StringFlag{
			Name:  "socket-path",
			Usage: "WebSocket path for live transcript viewers",
			Value: "/watch",
		},
		&cli.StringFlag{
			Name:  "ingest-path",
			Usage: "WebSocket path accepting producer frames (replaces stdin)",
		},
		&cli.IntFlag{
			Name:  "send-buffer",
			Usage: "Updates queued per viewer before it is dropped",
			Value: socket.DefaultSendBuffer,
		},
	}

	return &cli.Command{
		Name:   "relay",
		Usage:  "Consolidate a live chunk stream and publish transcript updates",
		Flags:  append(flags, StorageFlags()...),
		Action: relayAction,
	}
}

type policyChoice struct {
	name          string
	maxChunks     int
	maxBytes      int64
	flushCount    int
	flushInterval time.Duration
}

type storageChoice struct {
	dataset     string
	backend     string
	path        string
	region      string
	endpoint    string
	s3PathStyle bool
	finalOnly   bool
}

type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	perSession  bool
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

type socketChoice struct {
	listen     string
	path       string
	ingestPath string
	sendBuffer int
}

func relayAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	source := resolveString(c, "source", configVal(cfg, func(c *config.Config) string { return c.Source }))
	if source == "" {
		return cli.Exit("--source is required (set via flag or config file)", exitConfigError)
	}

	ccfg, err := consolidateConfig(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	choice := policyChoice{
		name:          resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Policy.Name })),
		maxChunks:     resolveInt(c, "buffer-chunks", configVal(cfg, func(c *config.Config) int { return c.Policy.BufferChunks })),
		maxBytes:      resolveInt64(c, "buffer-bytes", configVal(cfg, func(c *config.Config) int64 { return c.Policy.BufferBytes })),
		flushCount:    resolveInt(c, "flush-count", configVal(cfg, func(c *config.Config) int { return c.Policy.FlushCount })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Policy.FlushInterval.Duration })),
	}
	if err := validatePolicyConfig(choice); err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy config: %v", err), exitConfigError)
	}

	opts := storageOptions(c, cfg)
	storage := storageChoice{
		dataset:     opts.Dataset,
		backend:     opts.Backend,
		path:        opts.Path,
		region:      opts.Region,
		endpoint:    opts.Endpoint,
		s3PathStyle: opts.S3PathStyle,
		finalOnly:   resolveBool(c, "storage-final-only", configVal(cfg, func(c *config.Config) bool { return c.Storage.FinalOnly })),
	}
	if storage.backend == "" {
		return cli.Exit("--storage-backend is required (fs or s3)", exitConfigError)
	}
	if storage.path == "" {
		return cli.Exit("--storage-path is required", exitConfigError)
	}
	if err := validateStorageConfig(storage); err != nil {
		return cli.Exit(fmt.Sprintf("invalid storage config: %v", err), exitConfigError)
	}

	var ac *adapterChoice
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })); adapterType != "" {
		ac, err = parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), exitConfigError)
		}
	}

	sock := socketChoice{
		listen:     resolveString(c, "listen", configVal(cfg, func(c *config.Config) string { return c.Socket.Listen })),
		path:       resolveString(c, "socket-path", configVal(cfg, func(c *config.Config) string { return c.Socket.Path })),
		ingestPath: resolveString(c, "ingest-path", configVal(cfg, func(c *config.Config) string { return c.Socket.IngestPath })),
		sendBuffer: resolveInt(c, "send-buffer", configVal(cfg, func(c *config.Config) int { return c.Socket.SendBuffer })),
	}
	if err := validateSocketConfig(sock, c.String("file")); err != nil {
		return cli.Exit(fmt.Sprintf("invalid socket config: %v", err), exitConfigError)
	}

	format, err := reader.ParseInputFormat(resolveString(c, "input", configVal(cfg, func(c *config.Config) string { return c.Input })))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if format == reader.InputJSON {
		return cli.Exit("--input json cannot be relayed; use jsonl or msgpack", exitConfigError)
	}

	relayID := c.String("relay-id")
	if relayID == "" {
		relayID = relay.NewID()
	}
	meta := types.RelayMeta{RelayID: relayID, Source: source}
	logger := log.NewLogger(meta)
	defer func() { _ = logger.Sync() }()

	sourceKind := "stdin"
	switch {
	case sock.ingestPath != "":
		sourceKind = "socket"
	case c.String("file") != "":
		sourceKind = "file"
	}
	collector := metrics.NewCollector(choice.name, sourceKind, storage.backend, relayID)

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	startTime := time.Now()

	storePub, err := buildStorePublisher(ctx, storage, meta, startTime)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), exitConfigError)
	}
	instrumented := store.NewInstrumentedPublisher(storePub, collector)
	publishers := []adapter.Publisher{instrumented}

	if ac != nil {
		pub, err := buildAdapter(*ac)
		if err != nil {
			_ = iox.CloseAll(publishers...)
			return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitConfigError)
		}
		publishers = append(publishers, pub)
	}

	mux := http.NewServeMux()
	if sock.listen != "" && sock.path != "" {
		hub := socket.NewHub(socket.HubConfig{
			SendBuffer: sock.sendBuffer,
			Logger:     logger,
		})
		mux.Handle(sock.path, hub)
		publishers = append(publishers, hub)
	}

	transcript := relay.NewTranscript(relay.TranscriptConfig{
		Meta:        meta,
		Consolidate: ccfg,
		Publishers:  publishers,
		Logger:      logger,
		Collector:   collector,
	})

	pol, err := buildPolicy(choice, transcript, logger)
	if err != nil {
		_ = transcript.Close()
		return cli.Exit(fmt.Sprintf("failed to create policy: %v", err), exitConfigError)
	}

	src, closeSrc, err := buildSource(ctx, c.String("file"), format, sock, mux, logger)
	if err != nil {
		_ = pol.Close()
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer closeSrc()

	var srv *http.Server
	if sock.listen != "" {
		srv, err = startServer(sock.listen, mux, logger)
		if err != nil {
			_ = pol.Close()
			return cli.Exit(fmt.Sprintf("failed to listen on %s: %v", sock.listen, err), exitConfigError)
		}
	}

	r, err := relay.New(&relay.Config{
		Meta:          meta,
		Source:        src,
		Policy:        pol,
		Transcript:    transcript,
		MetricsWriter: instrumented,
		Logger:        logger,
		Collector:     collector,
		FlushTimeout:  c.Duration("flush-timeout"),
	})
	if err != nil {
		_ = pol.Close()
		return fmt.Errorf("failed to create relay: %w", err)
	}

	result := r.Execute(ctx)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown failed", map[string]any{"error": err.Error()})
		}
		shutdownCancel()
	}

	if !c.Bool("quiet") {
		printRelayResult(result, choice)
	}

	return cli.Exit("", outcomeToExitCode(result.Outcome))
}

func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case "strict":
		if choice.maxChunks > 0 || choice.maxBytes > 0 || choice.flushCount > 0 || choice.flushInterval > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer/flush flags ignored for strict policy\n")
		}
		return nil

	case "buffered":
		if choice.maxChunks < 0 || choice.maxBytes < 0 {
			return errors.New("--buffer-chunks and --buffer-bytes must be >= 0")
		}
		if choice.maxChunks == 0 && choice.maxBytes == 0 {
			return errors.New("buffered policy requires buffer limits: --buffer-chunks > 0 or --buffer-bytes > 0")
		}
		if choice.flushCount > 0 || choice.flushInterval > 0 {
			fmt.Fprintf(os.Stderr, "Warning: --flush-count/--flush-interval ignored for buffered policy\n")
		}
		return nil

	case "streaming":
		if choice.flushCount < 0 || choice.flushInterval < 0 {
			return errors.New("--flush-count and --flush-interval must be >= 0")
		}
		if choice.flushCount == 0 && choice.flushInterval == 0 {
			return errors.New("streaming policy requires a flush trigger: --flush-count > 0 or --flush-interval > 0")
		}
		if choice.maxChunks > 0 || choice.maxBytes > 0 {
			fmt.Fprintf(os.Stderr, "Warning: --buffer-chunks/--buffer-bytes ignored for streaming policy\n")
		}
		return nil

	default:
		return fmt.Errorf("invalid --policy %q (must be strict, buffered, or streaming)", choice.name)
	}
}

func validateStorageConfig(choice storageChoice) error {
	switch choice.backend {
	case "fs":
		info, err := os.Stat(choice.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("storage path does not exist: %s", choice.path)
			}
			return fmt.Errorf("cannot access storage path %s: %w", choice.path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("storage path is not a directory: %s", choice.path)
		}
		return nil

	case "s3":
		bucket, _ := store.ParseS3Path(choice.path)
		if bucket == "" {
			return errors.New("--storage-path required for s3 backend (format: bucket/prefix)")
		}
		return nil

	default:
		return fmt.Errorf("invalid --storage-backend %q (must be fs or s3)", choice.backend)
	}
}

func validateSocketConfig(sock socketChoice, file string) error {
	if sock.ingestPath == "" {
		return nil
	}
	if sock.listen == "" {
		return errors.New("--listen is required when --ingest-path is set")
	}
	if file != "" {
		return errors.New("--file and --ingest-path are mutually exclusive")
	}
	if sock.ingestPath == sock.path {
		return fmt.Errorf("--ingest-path and --socket-path must differ (both %q)", sock.path)
	}
	return nil
}

// parseAdapterConfigWithPrecedence resolves the adapter settings for
// adapterType. Config headers are applied first so --adapter-header can
// override individual keys.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	ac := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		perSession:  resolveBool(c, "adapter-per-session", configVal(cfg, func(c *config.Config) bool { return c.Adapter.PerSession })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
		headers:     make(map[string]string),
	}
	if !c.IsSet("adapter-retries") {
		if r := configVal(cfg, func(c *config.Config) *int { return c.Adapter.Retries }); r != nil {
			ac.retries = *r
		}
	}

	for k, v := range configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }) {
		ac.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (expected key=value)", h)
		}
		ac.headers[strings.TrimSpace(k)] = v
	}

	switch adapterType {
	case "webhook":
		if ac.url == "" {
			return nil, errors.New("--adapter-url is required when --adapter=webhook")
		}
	case "redis":
		if ac.url == "" {
			return nil, errors.New("--adapter-url is required when --adapter=redis")
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}

	return ac, nil
}

func buildAdapter(ac adapterChoice) (adapter.Publisher, error) {
	switch ac.adapterType {
	case "webhook":
		pub, err := webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "redis":
		pub, err := redis.New(redis.Config{
			URL:        ac.url,
			Channel:    ac.channel,
			PerSession: ac.perSession,
			Timeout:    ac.timeout,
			Retries:    ac.retries,
		})
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

func buildStorePublisher(ctx context.Context, choice storageChoice, meta types.RelayMeta, startTime time.Time) (*store.Publisher, error) {
	cfg := store.Config{
		Dataset:   choice.dataset,
		Source:    meta.Source,
		Day:       store.DeriveDay(startTime),
		RelayID:   meta.RelayID,
		FinalOnly: choice.finalOnly,
	}

	switch choice.backend {
	case "fs":
		return store.NewPublisher(cfg, choice.path)
	case "s3":
		bucket, prefix := store.ParseS3Path(choice.path)
		return store.NewS3Publisher(ctx, cfg, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.s3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", choice.backend)
	}
}

func buildPolicy(choice policyChoice, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(sink), nil
	case "buffered":
		return policy.NewBufferedPolicy(sink, policy.BufferedConfig{
			MaxBufferChunks: choice.maxChunks,
			MaxBufferBytes:  choice.maxBytes,
			Logger:          logger,
		})
	case "streaming":
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    choice.flushCount,
			FlushInterval: choice.flushInterval,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

// buildSource returns the relay source and a func releasing it.
// With an ingest path the source is a WebSocket receiver mounted on mux;
// it is closed on cancellation so a blocked Next returns.
func buildSource(ctx context.Context, file string, format reader.InputFormat, sock socketChoice, mux *http.ServeMux, logger *log.Logger) (relay.Source, func(), error) {
	if sock.ingestPath != "" {
		recv := socket.NewReceiver(socket.ReceiverConfig{
			CloseOnDisconnect: true,
			Logger:            logger,
		})
		mux.Handle(sock.ingestPath, recv)
		stop := context.AfterFunc(ctx, func() { _ = recv.Close() })
		return recv, func() {
			stop()
			_ = recv.Close()
		}, nil
	}

	in, closeIn, err := openInput(file)
	if err != nil {
		return nil, nil, err
	}
	src, err := reader.NewSource(in, format)
	if err != nil {
		closeIn()
		return nil, nil, err
	}
	return src, closeIn, nil
}

// startServer binds addr synchronously so listen errors surface before the
// relay starts, then serves in the background.
func startServer(addr string, handler http.Handler, logger *log.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", map[string]any{"error": err.Error()})
		}
	}()
	logger.Info("listening", map[string]any{"addr": ln.Addr().String()})
	return srv, nil
}

func outcomeToExitCode(outcome relay.Outcome) int {
	switch outcome {
	case relay.OutcomeCompleted:
		return exitSuccess
	case relay.OutcomeStreamError, relay.OutcomeCanceled:
		return exitStreamError
	case relay.OutcomePolicyFailure:
		return exitPolicyFailure
	default:
		return exitStreamError
	}
}

func printRelayResult(result *relay.Result, choice policyChoice) {
	fmt.Printf("\nrelay_id=%s, outcome=%s, duration=%s\n",
		result.Meta.RelayID,
		result.Outcome,
		result.Duration.Round(time.Millisecond),
	)

	switch choice.name {
	case "buffered":
		fmt.Printf("policy=%s, drops=%d, buffer_bytes=%d\n",
			choice.name,
			result.PolicyStats.ChunksDropped,
			result.PolicyStats.BufferSize,
		)
	case "streaming":
		fmt.Printf("policy=%s, flush_count=%d, flush_interval=%s\n",
			choice.name,
			choice.flushCount,
			choice.flushInterval,
		)
	default:
		fmt.Printf("policy=%s\n", choice.name)
	}

	fmt.Printf("\n=== Relay Result ===\n")
	fmt.Printf("Relay ID:     %s\n", result.Meta.RelayID)
	fmt.Printf("Source:       %s\n", result.Meta.Source)
	fmt.Printf("Outcome:      %s\n", result.Outcome)
	fmt.Printf("Message:      %s\n", result.Message)
	fmt.Printf("Duration:     %s\n", result.Duration)
	fmt.Printf("Chunks:       %d\n", result.ChunkCount)

	fmt.Printf("\n=== Policy Stats ===\n")
	fmt.Printf("Chunks Total:     %d\n", result.PolicyStats.TotalChunks)
	fmt.Printf("Chunks Flushed:   %d\n", result.PolicyStats.ChunksFlushed)
	fmt.Printf("Chunks Dropped:   %d\n", result.PolicyStats.ChunksDropped)
	fmt.Printf("Flushes:          %d\n", result.PolicyStats.FlushCount)

	stats := result.Transcript.Stats
	fmt.Printf("\n=== Transcript ===\n")
	fmt.Printf("Chunks:            %d\n", len(result.Transcript.Consolidated))
	fmt.Printf("Original:          %d\n", stats.Original)
	fmt.Printf("Deduplicated:      %d\n", stats.Deduplicated)
	fmt.Printf("Text Merged:       %d\n", stats.TextMerged)
	fmt.Printf("Tools Collapsed:   %d\n", stats.ToolsCollapsed)
	fmt.Printf("System Superseded: %d\n", stats.SystemSuperseded)

	snap := result.Metrics
	if snap.PublishFailure > 0 || snap.StoreWriteFailure > 0 || snap.DecodeErrors > 0 {
		fmt.Printf("\n=== Errors ===\n")
		fmt.Printf("Decode Errors:    %d\n", snap.DecodeErrors)
		fmt.Printf("Publish Failures: %d\n", snap.PublishFailure)
		fmt.Printf("Store Failures:   %d\n", snap.StoreWriteFailure)
	}
}
