// Command sx is the CLI shell for the search engine: it wires argument
// parsing (github.com/alecthomas/kong), optional .env loading
// (github.com/joho/godotenv), and TTY-gated colorized output
// (github.com/fatih/color) around the sx.Engine facade.
//
// Modeled on kadirpekel/hector's cmd/hector/main.go: a top-level CLI
// struct of cmd-tagged sub-commands, global flags on the root struct,
// kong.Parse followed by ctx.Run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/HACKE-RC/sx"
	"github.com/HACKE-RC/sx/internal/analysis"
	"github.com/HACKE-RC/sx/internal/query"
	"github.com/HACKE-RC/sx/internal/scan"
)

// ErrUsage signals an illegal flag combination caught before any store
// access.
var ErrUsage = errors.New("cli: usage error")

const (
	exitOK          = 0
	exitUsage       = 1
	exitStoreOrIO   = 2
	exitNotIndexed  = 3
)

// CLI is the root argument struct. Index, Search, and Status are real
// sub-commands; the `sx "query" path/` shorthand is recognized by
// detectShorthand before kong parsing runs.
type CLI struct {
	Index  IndexCmd  `cmd:"" help:"Scan a directory and (re)build the index."`
	Search SearchCmd `cmd:"" help:"Run a query against the index."`
	Status StatusCmd `cmd:"" help:"Show index summary statistics."`

	IndexPath  string  `name:"index" short:"i" help:"Path to the index database." default:"bm25.sqlite" type:"path"`
	K          int     `help:"Number of results to return." default:"10"`
	K1         float64 `help:"BM25 term-frequency saturation." default:"1.2"`
	B          float64 `help:"BM25 length-normalization factor." default:"0.75"`
	PathBoost  float64 `name:"path-boost" help:"Multiplicative score boost when a matched term also appears in the path." default:"1.5"`
	Stem       bool    `help:"Enable stemming."`
	NoStop     bool    `name:"no-stopwords" help:"Disable stopword removal."`
	Path       string  `help:"Only return results whose path contains this substring."`
	Ext        string  `help:"Only return results with this file extension, e.g. .go"`
	JSON       bool    `help:"Emit JSON instead of human-readable text."`
	Snippet    bool    `help:"Include a matching line snippet with each result." default:"true"`
	Color      bool    `help:"Force colorized output even when stdout isn't a TTY."`
}

func (c *CLI) analyzerOptions() analysis.Options {
	return analysis.Options{Stem: c.Stem, Stopwords: !c.NoStop}
}

// IndexCmd builds or updates the index for one directory tree.
type IndexCmd struct {
	Root        string `arg:"" optional:"" help:"Root directory to index." default:"."`
	Full        bool   `help:"Discard the existing index and rebuild from scratch."`
	Workers     int    `help:"Number of parallel parse workers." default:"4"`
	NoProgress  bool   `name:"no-progress" help:"Suppress progress output."`
	Out         string `help:"Write the index to this path instead of --index."`
	Watch       bool   `help:"Keep running, reindexing incrementally as files change."`
}

func (cmd *IndexCmd) Run(cli *CLI) error {
	indexPath := cli.IndexPath
	if cmd.Out != "" {
		indexPath = cmd.Out
	}

	root, err := filepath.Abs(cmd.Root)
	if err != nil {
		return err
	}

	eng, err := sx.Open(indexPath, cli.analyzerOptions(), scan.DefaultOptions())
	if err != nil {
		return exitErr(exitStoreOrIO, err)
	}
	defer eng.Close()

	progress := func(done, total int, path string) {
		if cmd.NoProgress {
			return
		}
		fmt.Fprintf(os.Stderr, "\r[%d/%d] %s", done, total, truncatePath(path, 60))
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	res, err := eng.Index(context.Background(), root, sx.IndexOptions{
		Full:     cmd.Full,
		Workers:  cmd.Workers,
		Progress: progress,
	})
	if err != nil {
		return exitErr(exitStoreOrIO, err)
	}

	c := colorizer(cli.Color)
	fmt.Printf("%s %d indexed, %d unchanged, %d deleted, %d errors\n",
		c.Green("done:"), res.FilesIndexed, res.FilesSkipped, res.FilesDeleted, len(res.Errors))
	for _, fe := range res.Errors {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", c.Red("error:"), fe.Path, fe.Err)
	}

	if cmd.Watch {
		return runWatch(eng, root, cmd, cli)
	}
	return nil
}

func runWatch(eng *sx.Engine, root string, cmd *IndexCmd, cli *CLI) error {
	scanner := scan.New(scan.DefaultOptions())
	done := make(chan struct{})
	defer close(done)

	return scanner.Watch(root, done, func(path string) {
		_, err := eng.Index(context.Background(), root, sx.IndexOptions{Workers: cmd.Workers})
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: reindex after change to %s: %v\n", path, err)
			return
		}
		fmt.Fprintf(os.Stderr, "reindexed after change to %s\n", path)
	})
}

// SearchCmd runs one query against an already-built index.
type SearchCmd struct {
	Query string `arg:"" help:"Query string. Use '|' to mean OR between alternatives."`
}

func (cmd *SearchCmd) Run(cli *CLI) error {
	return runSearch(cli, cmd.Query)
}

func runSearch(cli *CLI, queryStr string) error {
	if strings.TrimSpace(queryStr) == "" {
		return exitErr(exitUsage, fmt.Errorf("%w: empty query", ErrUsage))
	}

	eng, err := sx.Open(cli.IndexPath, cli.analyzerOptions(), scan.DefaultOptions())
	if err != nil {
		return exitErr(exitStoreOrIO, err)
	}
	defer eng.Close()

	hits, err := eng.Search(queryStr, sx.SearchOptions{
		K:          cli.K,
		K1:         cli.K1,
		B:          cli.B,
		PathBoost:  cli.PathBoost,
		PathFilter: cli.Path,
		ExtFilter:  cli.Ext,
		Snippets:   cli.Snippet,
	})
	if err != nil {
		switch {
		case errors.Is(err, query.ErrEmptyIndex):
			return exitErr(exitNotIndexed, err)
		default:
			return exitErr(exitStoreOrIO, err)
		}
	}

	if cli.JSON {
		return printJSON(hits)
	}
	printHuman(hits, cli.Color)
	return nil
}

// StatusCmd reports summary statistics for the currently configured
// index.
type StatusCmd struct{}

func (cmd *StatusCmd) Run(cli *CLI) error {
	eng, err := sx.Open(cli.IndexPath, cli.analyzerOptions(), scan.DefaultOptions())
	if err != nil {
		return exitErr(exitStoreOrIO, err)
	}
	defer eng.Close()

	st, err := eng.StatusOf()
	if err != nil {
		return exitErr(exitStoreOrIO, err)
	}
	if st.Docs == 0 {
		return exitErr(exitNotIndexed, fmt.Errorf("%s has not been indexed yet", cli.IndexPath))
	}

	if cli.JSON {
		return printJSON(st)
	}
	fmt.Printf("root:      %s\n", st.Root)
	fmt.Printf("documents: %d\n", st.Docs)
	fmt.Printf("analyzer:  %s\n", st.AnalyzerFP)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHuman(hits []sx.Hit, forceColor bool) {
	c := colorizer(forceColor)
	for _, h := range hits {
		fmt.Printf("%s %s\n", c.Cyan(h.Path), c.Yellow(fmt.Sprintf("(%.3f)", h.Score)))
		if h.Snippet != "" {
			fmt.Printf("  %d: %s\n", h.Line, h.Snippet)
		}
	}
}

func truncatePath(p string, max int) string {
	if len(p) <= max {
		return p
	}
	return "..." + p[len(p)-max+3:]
}

type palette struct {
	Green, Red, Cyan, Yellow func(format string, a ...any) string
}

// colorizer gates ANSI output on --color or stdout being a character
// device, the same check cmd/hector/main.go:printBanner uses.
func colorizer(force bool) palette {
	enabled := force || isTTY()
	color.NoColor = !enabled
	return palette{
		Green:  color.New(color.FgGreen).Sprintf,
		Red:    color.New(color.FgRed).Sprintf,
		Cyan:   color.New(color.FgCyan).Sprintf,
		Yellow: color.New(color.FgYellow).Sprintf,
	}
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func exitErr(code int, err error) error {
	return &exitError{code: code, err: err}
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	_ = godotenv.Load()

	args := os.Args[1:]
	if shorthand, rest := detectShorthand(args); shorthand {
		runShorthand(rest)
		return
	}

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("sx"),
		kong.Description("Local full-text search over source and documentation trees."),
		kong.UsageOnError(),
	)

	err := kctx.Run(&cli)
	if err == nil {
		os.Exit(exitOK)
	}

	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintln(os.Stderr, ee.Error())
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(exitUsage)
}

// detectShorthand recognizes `sx "query" [path]`: the first argument is
// neither a known sub-command nor a flag, so it's treated as a bare
// search query.
func detectShorthand(args []string) (bool, []string) {
	if len(args) == 0 {
		return false, nil
	}
	first := args[0]
	known := map[string]bool{"index": true, "search": true, "status": true, "--help": true, "-h": true}
	if known[first] || len(first) > 0 && first[0] == '-' {
		return false, nil
	}
	return true, args
}

func runShorthand(args []string) {
	cli := CLI{IndexPath: "bm25.sqlite", K: 10, K1: 1.2, B: 0.75, PathBoost: 1.5, Snippet: true}
	queryStr := args[0]
	if len(args) > 1 {
		cli.Path = args[1]
	}

	if err := runSearch(&cli, queryStr); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.Error())
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitStoreOrIO)
	}
}
