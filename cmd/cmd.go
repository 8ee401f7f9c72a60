// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// App builds the root command. Running it without a subcommand performs a playlist update.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:     "csv2spotify",
		Usage:    "Replace Spotify playlists with the tracks listed in a CSV",
		Version:  "1.0.0",
		Flags:    append(rootFlags(), updateFlags()...),
		Before:   r.Before,
		Action:   r.Update,
		Commands: r.register(),
	}
}

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "csv",
			Usage: "CSV path or http(s) URL, overrides CSV_PATH",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "File the auth command writes credentials to",
			Value: ".env",
		},
	}
}

func updateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Resolve and select tracks without modifying playlists",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a run report to this file",
		},
		&cli.StringFlag{
			Name:  "report-format",
			Usage: "Report format: text, markdown, json or csv (skipped rows)",
			Value: "text",
		},
	}
}

// authCommand runs the interactive authorization helper
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize with Spotify in the browser and store the refresh token in .env",
		Action: r.Auth,
	}
}

// inspectCommand prints how each row would be resolved
func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Show how each CSV row would be resolved, without calling Spotify",
		Action: r.Inspect,
	}
}

// initCommand writes a starter config file
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create config.toml from the built-in defaults",
		Action: r.Init,
	}
}
