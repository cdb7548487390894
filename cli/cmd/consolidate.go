package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/cli/config"
	"github.com/pithecene-io/runnel/cli/reader"
	"github.com/pithecene-io/runnel/cli/render"
	"github.com/pithecene-io/runnel/consolidate"
)

// ConsolidateCommand returns the consolidate command.
// It runs one consolidation pass over a file or stdin and prints the result.
// Nothing is stored or published.
func ConsolidateCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Input format: jsonl, json, msgpack",
			Value:   string(reader.InputJSONL),
		},
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
		&cli.BoolFlag{
			Name:  "hide-collapsed",
			Usage: "Omit tool results folded into their tool call",
		},
		&cli.BoolFlag{
			Name:  "stats-only",
			Usage: "Print only the consolidation stats",
		},
	}
	return &cli.Command{
		Name:      "consolidate",
		Usage:     "Consolidate a chunk stream and print the transcript",
		ArgsUsage: "[file|-]",
		Flags:     append(flags, ReadOnlyFlags()...),
		Action:    consolidateAction,
	}
}

func consolidateAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for consolidate command", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	ccfg, err := consolidateConfig(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	format, err := reader.ParseInputFormat(resolveString(c, "input", configVal(cfg, func(c *config.Config) string { return c.Input })))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	in, closeIn, err := openInput(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer closeIn()

	resp, skipped, err := consolidateInput(in, format, ccfg, c.Bool("hide-collapsed"))
	if err != nil {
		return cli.Exit(err.Error(), exitStreamError)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: skipped %d undecodable frames\n", skipped)
	}

	switch {
	case c.Bool("stats-only"):
		return r.Render(resp.Stats)
	case r.Format() == render.FormatTable:
		return r.Render(reader.Lines(resp.Chunks, false))
	default:
		return r.Render(resp)
	}
}

// consolidateConfig resolves --max-merge-bytes and --unsequenced.
func consolidateConfig(c *cli.Context, cfg *config.Config) (consolidate.Config, error) {
	order, err := consolidate.ParseUnsequencedOrder(
		resolveString(c, "unsequenced", configVal(cfg, func(c *config.Config) string { return c.Merge.Unsequenced })),
	)
	if err != nil {
		return consolidate.Config{}, fmt.Errorf("invalid --unsequenced: %w", err)
	}

	maxBytes := resolveInt(c, "max-merge-bytes", configVal(cfg, func(c *config.Config) int { return c.Merge.MaxBytes }))
	if maxBytes < 0 {
		return consolidate.Config{}, fmt.Errorf("--max-merge-bytes must be >= 0, got %d", maxBytes)
	}

	return consolidate.Config{MaxMergeBytes: maxBytes, Unsequenced: order}, nil
}

// consolidateInput reads a whole batch and consolidates it in one pass.
// Returns the response and the number of frames skipped as undecodable.
func consolidateInput(in io.Reader, format reader.InputFormat, cfg consolidate.Config, hideCollapsed bool) (*reader.TranscriptResponse, int, error) {
	batch, err := reader.ReadBatch(in, format)
	if err != nil {
		return nil, 0, err
	}

	result := consolidate.Consolidate(batch.Chunks, cfg)

	chunks := result.Consolidated
	if hideCollapsed {
		chunks = visibleChunks(chunks)
	}

	update := adapter.TranscriptUpdate{Chunks: result.Consolidated}
	return &reader.TranscriptResponse{
		Final:    true,
		Sessions: update.Sessions(),
		Chunks:   chunks,
		Stats:    result.Stats,
	}, batch.Skipped, nil
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("input file not found: %s", path)
		}
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
