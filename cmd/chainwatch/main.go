package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	verbose := &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging (overrides LOG_LEVEL)",
	}

	app := &cli.App{
		Name:  "chainwatch",
		Usage: "Watch an EVM address and alert on its transactions",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Monitor new blocks and serve the read API",
				Flags:  []cli.Flag{verbose},
				Action: run,
			},
			{
				Name:   "stats",
				Usage:  "Print aggregated stats of the transaction log",
				Flags:  []cli.Flag{verbose},
				Action: stats,
			},
			{
				Name:      "scan-block",
				Usage:     "Run a single block through the pipeline",
				ArgsUsage: "<block-number>",
				Flags: []cli.Flag{
					verbose,
					&cli.BoolFlag{
						Name:  "notify",
						Usage: "Send alerts for new matches",
					},
				},
				Action: scanBlock,
			},
			{
				Name:      "inspect",
				Usage:     "Fetch and analyze one transaction without recording it",
				ArgsUsage: "<tx-hash>",
				Flags:     []cli.Flag{verbose},
				Action:    inspect,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
