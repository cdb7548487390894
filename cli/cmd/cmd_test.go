package cmd

import (
	"flag"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/runnel/cli/config"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestTUIReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := TUIReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("TUIReadOnlyFlags should include --tui flag")
	}
}

func TestStorageFlags_Names(t *testing.T) {
	want := map[string]bool{
		"storage-dataset":       false,
		"storage-backend":       false,
		"storage-path":          false,
		"storage-region":        false,
		"storage-endpoint":      false,
		"storage-s3-path-style": false,
	}
	for _, f := range StorageFlags() {
		name := f.Names()[0]
		if _, ok := want[name]; !ok {
			t.Errorf("unexpected storage flag %q", name)
			continue
		}
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing storage flag %q", name)
		}
	}
}

// --- Config precedence ---

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues maps flag names to their string values. All listed flags are
// registered and marked as explicitly set (c.IsSet returns true).
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}

	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"source": "cli-val"}, nil)
	got := resolveString(c, "source", "config-val")
	if got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"source": ""})
	got := resolveString(c, "source", "config-val")
	if got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_FlagDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"policy": "strict"})
	got := resolveString(c, "policy", "")
	if got != "strict" {
		t.Errorf("expected flag default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *config.Config) string { return c.Source })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &config.Config{Source: "from-config"}
	got := configVal(cfg, func(c *config.Config) string { return c.Source })
	if got != "from-config" {
		t.Errorf("expected from-config, got %q", got)
	}
}

func TestResolveInt_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "buffer-chunks"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("buffer-chunks", 0, "")
	_ = fs.Set("buffer-chunks", "500")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "buffer-chunks", 1000)
	if got != 500 {
		t.Errorf("expected CLI to win with 500, got %d", got)
	}
}

func TestResolveInt_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "buffer-chunks"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("buffer-chunks", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "buffer-chunks", 1000)
	if got != 1000 {
		t.Errorf("expected config fallback 1000, got %d", got)
	}
}

func TestResolveInt64_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.Int64Flag{Name: "buffer-bytes"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int64("buffer-bytes", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt64(c, "buffer-bytes", 1<<20)
	if got != 1<<20 {
		t.Errorf("expected config fallback %d, got %d", 1<<20, got)
	}
}

func TestResolveBool_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "storage-s3-path-style"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("storage-s3-path-style", false, "")
	_ = fs.Set("storage-s3-path-style", "true")
	c := cli.NewContext(app, fs, nil)

	got := resolveBool(c, "storage-s3-path-style", false)
	if !got {
		t.Error("expected CLI true to win")
	}
}

func TestResolveBool_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "storage-final-only"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("storage-final-only", false, "")
	c := cli.NewContext(app, fs, nil)

	if !resolveBool(c, "storage-final-only", true) {
		t.Error("expected config true to apply when flag is unset")
	}
}

func TestResolveDuration_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	_ = fs.Set("adapter-timeout", "30s")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "adapter-timeout", 10*time.Second)
	if got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

func TestResolveDuration_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "adapter-timeout", 10*time.Second)
	if got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}
}

func TestStorageOptions_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t,
		map[string]string{"storage-path": "/cli/path"},
		map[string]string{"storage-dataset": "runnel", "storage-backend": "", "storage-region": "", "storage-endpoint": ""},
	)
	cfg := &config.Config{Storage: config.StorageConfig{
		Dataset: "transcripts",
		Backend: "s3",
		Path:    "bucket/config",
		Region:  "eu-west-1",
	}}

	opts := storageOptions(c, cfg)
	if opts.Path != "/cli/path" {
		t.Errorf("Path = %q, want CLI value", opts.Path)
	}
	if opts.Backend != "s3" || opts.Region != "eu-west-1" || opts.Dataset != "transcripts" {
		t.Errorf("expected config fallback for backend/region/dataset, got %+v", opts)
	}
}
