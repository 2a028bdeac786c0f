package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

// main is separated from run and application to help with testing.
func main() {
	run(os.Args)
}

// run is separated from main for debugging's sake.
func run(args []string) {
	app := application()
	if err := app.Run(args); err != nil {
		log.Fatal(err)
	}
}

// application defines the bwtidx command line utility: a minimal driver
// over the library's own public API (build an index from a raw BWT byte
// stream, then query it), not a parser or annotation frontend.
func application() *cli.App {
	return &cli.App{
		Name:  "bwtidx",
		Usage: "Build and query a compressed, self-indexed BWT store.",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "alphabet",
				Value: "dna",
				Usage: "Domain alphabet: dna, rna, or protein.",
			},
			&cli.Uint64Flag{
				Name:  "length",
				Usage: "Length of the indexed sequence (required by every command but build).",
			},
		},

		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build an index from a raw BWT byte stream.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true, Usage: "Path to the raw BWT byte stream."},
					&cli.StringFlag{Name: "out", Required: true, Usage: "Path to write the built index."},
					&cli.IntFlag{Name: "block-size", Value: 64, Usage: "Symbols per block."},
					&cli.IntFlag{Name: "blocks-per-superbucket", Value: 8, Usage: "Blocks per super-bucket."},
					&cli.StringFlag{Name: "sa", Usage: "Path to a suffix array (u64 little-endian) to also build a locate table."},
					&cli.StringFlag{Name: "locate-out", Usage: "Path to write the built locate table (requires -sa)."},
					&cli.IntFlag{Name: "sample-interval", Value: 16, Usage: "Locate table sample interval."},
				},
				Action: func(c *cli.Context) error {
					return buildCommand(c)
				},
			},
			{
				Name:  "get",
				Usage: "Print the symbol at a position.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "index", Required: true, Usage: "Path to a built index."},
					&cli.Uint64Flag{Name: "pos", Required: true, Usage: "Position to query."},
				},
				Action: func(c *cli.Context) error {
					return getCommand(c)
				},
			},
			{
				Name:  "rank",
				Usage: "Print the number of occurrences of a symbol up to and including a position.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "index", Required: true, Usage: "Path to a built index."},
					&cli.StringFlag{Name: "sym", Required: true, Usage: "Symbol to rank."},
					&cli.Uint64Flag{Name: "pos", Required: true, Usage: "Position to query."},
				},
				Action: func(c *cli.Context) error {
					return rankCommand(c)
				},
			},
			{
				Name:  "match-count",
				Usage: "Print the number of backward-search matches for a query.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "index", Required: true, Usage: "Path to a built index."},
					&cli.StringFlag{Name: "query", Required: true, Usage: "Query string."},
				},
				Action: func(c *cli.Context) error {
					return matchCountCommand(c)
				},
			},
			{
				Name:  "locate",
				Usage: "Print every original-sequence position matching a query.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "index", Required: true, Usage: "Path to a built index."},
					&cli.StringFlag{Name: "locate", Required: true, Usage: "Path to a built locate table."},
					&cli.StringFlag{Name: "query", Required: true, Usage: "Query string."},
				},
				Action: func(c *cli.Context) error {
					return locateCommand(c)
				},
			},
			{
				Name:  "verify",
				Usage: "Check a built index against its original raw BWT byte stream.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "index", Required: true, Usage: "Path to a built index."},
					&cli.StringFlag{Name: "raw", Required: true, Usage: "Path to the original raw BWT byte stream."},
				},
				Action: func(c *cli.Context) error {
					return verifyCommand(c)
				},
			},
		},
	}
}
