package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	var e *env
	return &cli.App{
		Name:      "inkpost",
		Usage:     "Read, write and moderate stories on an inkpost blog",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default ./inkpost.yaml or ~/.inkpost/inkpost.yaml)"},
			&cli.StringFlag{Name: "base-url", Usage: "API base URL"},
			&cli.StringFlag{Name: "session", Usage: "session backend: file, sqlite, redis or memory"},
			&cli.StringFlag{Name: "lang", Usage: "interface language: en or es"},
			&cli.StringFlag{Name: "format", Aliases: []string{"o"}, Value: formatText, Usage: "output format: text, json, yaml or html"},
			&cli.BoolFlag{Name: "trace", Usage: "print a span for every API request to stderr"},
			&cli.StringFlag{Name: "otlp-endpoint", EnvVars: []string{"INKPOST_OTLP_ENDPOINT"}, Usage: "send request spans to this OTLP/HTTP collector (host:port)"},
			&cli.StringFlag{Name: "metrics-file", Usage: "write client metrics to this file on exit"},
		},
		Before: func(c *cli.Context) error {
			var err error
			e, err = newEnv(c, stdout, stderr)
			return err
		},
		After: func(c *cli.Context) error {
			if e == nil {
				return nil
			}
			return e.close(c.Context)
		},
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check that the API is reachable",
				Action: func(c *cli.Context) error { return e.health(c) },
			},
			{
				Name:      "register",
				Usage:     "Create an account",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					passwordFlag(),
					&cli.StringFlag{Name: "confirm", Usage: "password confirmation (defaults to --password)"},
				},
				Action: func(c *cli.Context) error { return e.register(c) },
			},
			{
				Name:      "login",
				Usage:     "Log in and keep the session",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{passwordFlag()},
				Action:    func(c *cli.Context) error { return e.login(c) },
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: func(c *cli.Context) error { return e.logout(c) },
			},
			{
				Name:    "whoami",
				Aliases: []string{"status"},
				Usage:   "Show the current session",
				Action:  func(c *cli.Context) error { return e.whoami(c) },
			},
			{
				Name:  "stories",
				Usage: "Browse public stories",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List the public feed",
						Flags: []cli.Flag{
							pageFlag(),
							&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "filter by title or content"},
							&cli.StringFlag{Name: "author", Usage: "filter by author"},
							&cli.StringFlag{Name: "sort", Value: "newest", Usage: "newest, oldest or title"},
						},
						Action: func(c *cli.Context) error { return e.listStories(c) },
					},
					{
						Name:      "show",
						Usage:     "Read one story",
						ArgsUsage: "<id>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "image", Usage: "open the gallery at this image (1-based)"},
						},
						Action: func(c *cli.Context) error { return e.showStory(c) },
					},
				},
			},
			{
				Name:   "my-stories",
				Usage:  "List your own stories",
				Flags:  []cli.Flag{pageFlag()},
				Action: func(c *cli.Context) error { return e.myStories(c) },
			},
			{
				Name:  "create",
				Usage: "Publish a new story",
				Flags: append(storyFlags(true),
					&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "image file to upload and attach (repeatable, at most 4)"},
				),
				Action: func(c *cli.Context) error { return e.createStory(c) },
			},
			{
				Name:      "update",
				Usage:     "Edit one of your stories",
				ArgsUsage: "<id>",
				Flags: append(storyFlags(false),
					&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "image file to upload and attach (repeatable)"},
					&cli.IntSliceFlag{Name: "remove-image", Usage: "detach the image at this position (1-based, repeatable)"},
				),
				Action: func(c *cli.Context) error { return e.updateStory(c) },
			},
			{
				Name:      "delete",
				Usage:     "Delete one of your stories",
				ArgsUsage: "<id>",
				Action:    func(c *cli.Context) error { return e.deleteStory(c) },
			},
			{
				Name:      "upload",
				Usage:     "Upload images to your library",
				ArgsUsage: "<file>...",
				Action:    func(c *cli.Context) error { return e.upload(c) },
			},
			{
				Name:   "images",
				Usage:  "List your uploaded images",
				Flags:  []cli.Flag{pageFlag()},
				Action: func(c *cli.Context) error { return e.images(c) },
			},
			{
				Name:      "delete-image",
				Usage:     "Delete an uploaded image",
				ArgsUsage: "<public-id>",
				Action:    func(c *cli.Context) error { return e.deleteImage(c) },
			},
			adminCommand(&e),
			{
				Name:  "sandbox",
				Usage: "Serve an in-memory API for local use",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default sandbox.addr)"},
				},
				Action: func(c *cli.Context) error { return e.serveSandbox(c) },
			},
		},
	}
}

func adminCommand(e **env) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Moderate the blog (administrators only)",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show site statistics",
				Action: func(c *cli.Context) error { return (*e).adminStats(c) },
			},
			{
				Name:  "stories",
				Usage: "List every story",
				Flags: []cli.Flag{
					pageFlag(),
					&cli.StringFlag{Name: "status", Value: "all", Usage: "all, active, flagged or deleted"},
				},
				Action: func(c *cli.Context) error { return (*e).adminStories(c) },
			},
			{
				Name:   "users",
				Usage:  "List users",
				Flags:  []cli.Flag{pageFlag()},
				Action: func(c *cli.Context) error { return (*e).adminUsers(c) },
			},
			{
				Name:   "moderation",
				Usage:  "Show flagged stories and banned users",
				Action: func(c *cli.Context) error { return (*e).adminModeration(c) },
			},
			{
				Name:      "delete",
				Usage:     "Remove a story",
				ArgsUsage: "<id>",
				Action:    func(c *cli.Context) error { return (*e).adminDelete(c) },
			},
			{
				Name:      "ban",
				Usage:     "Ban a user",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "why the user is banned", Required: true},
				},
				Action: func(c *cli.Context) error { return (*e).adminBan(c) },
			},
			{
				Name:      "unban",
				Usage:     "Lift a ban",
				ArgsUsage: "<username>",
				Action:    func(c *cli.Context) error { return (*e).adminUnban(c) },
			},
			{
				Name:      "role",
				Usage:     "Change a user's role",
				ArgsUsage: "<username> <user|admin>",
				Action:    func(c *cli.Context) error { return (*e).adminRole(c) },
			},
		},
	}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"INKPOST_PASSWORD"}, Usage: "account password"}
}

func pageFlag() cli.Flag {
	return &cli.IntFlag{Name: "page", Value: 1, Usage: "page number"}
}

func storyFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "story title", Required: required},
		&cli.StringFlag{Name: "content", Usage: "story text, paragraphs separated by a blank line"},
		&cli.StringFlag{Name: "content-file", Usage: "read the story text from this file (- for stdin)"},
	}
}
