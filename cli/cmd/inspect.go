package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/runnel/cli/reader"
	"github.com/pithecene-io/runnel/cli/render"
	"github.com/pithecene-io/runnel/cli/tui"
	"github.com/pithecene-io/runnel/store"
	"github.com/pithecene-io/runnel/types"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect reads a stored relay back from the dataset; it never writes.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a stored relay (transcript, stats)",
		Subcommands: []*cli.Command{
			inspectTranscriptCommand(),
			inspectStatsCommand(),
		},
	}
}

func inspectFlags(extra ...cli.Flag) []cli.Flag {
	flags := append([]cli.Flag{ConfigFlag}, extra...)
	flags = append(flags, StorageFlags()...)
	return append(flags, TUIReadOnlyFlags()...)
}

func inspectTranscriptCommand() *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Show the latest consolidated transcript of a relay",
		ArgsUsage: "<relay-id>",
		Flags: inspectFlags(
			&cli.StringFlag{
				Name:  "session",
				Usage: "Only show chunks of this session",
			},
			&cli.BoolFlag{
				Name:  "hide-collapsed",
				Usage: "Omit tool results folded into their tool call",
			},
		),
		Action: inspectTranscriptAction,
	}
}

func inspectTranscriptAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("relay-id required", 1)
	}
	relayID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	session := c.String("session")
	if c.IsSet("session") && session == "" {
		session = types.DefaultSession
	}

	resp, err := rd.Transcript(c.Context, relayID, session)
	if err != nil {
		return notFoundOr(err, relayID)
	}
	if c.Bool("hide-collapsed") {
		resp.Chunks = visibleChunks(resp.Chunks)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewTranscript, resp)
	}
	if r.Format() == render.FormatTable {
		return r.Render(reader.Lines(resp.Chunks, false))
	}
	return r.Render(resp)
}

func inspectStatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show consolidation stats and relay metrics",
		ArgsUsage: "<relay-id>",
		Flags:     inspectFlags(),
		Action:    inspectStatsAction,
	}
}

func inspectStatsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("relay-id required", 1)
	}
	relayID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	resp, err := rd.Stats(c.Context, relayID)
	if err != nil {
		return notFoundOr(err, relayID)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStats, resp)
	}
	return r.Render(resp)
}

// openReader resolves storage flags and opens the dataset for reading.
func openReader(c *cli.Context) (reader.Reader, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	ds, err := reader.OpenDataset(c.Context, storageOptions(c, cfg))
	if err != nil {
		return nil, err
	}
	return reader.NewDatasetReader(ds), nil
}

func notFoundOr(err error, relayID string) error {
	if errors.Is(err, store.ErrNoTranscriptFound) || errors.Is(err, store.ErrNoMetricsFound) || errors.Is(err, store.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("relay not found: %s", relayID), 1)
	}
	return fmt.Errorf("failed to read relay %s: %w", relayID, err)
}

func visibleChunks(chunks []types.Chunk) []types.Chunk {
	out := make([]types.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if !ch.Collapsed {
			out = append(out, ch)
		}
	}
	return out
}
