package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ideashare/internal"
	"github.com/starford/ideashare/internal/feed"
	"github.com/starford/ideashare/internal/ideaservice"
	pkgconfig "github.com/starford/ideashare/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// withService runs fn against a freshly built service and prints its result
// as JSON on stdout. Logs go to stderr.
func withService(fn func(ctx context.Context, cmd *cli.Command, svc *ideaservice.Service) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := internal.Build(ctx, cfg, internal.NewLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := fn(ctx, cmd, app.Service)
		if out != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(out); encErr != nil {
				return encErr
			}
		}
		return err
	}
}

func submit(ctx context.Context, cmd *cli.Command, svc *ideaservice.Service) (any, error) {
	if cmd.Args().Len() != 1 {
		return nil, errors.New("usage: submit TEXT")
	}
	return svc.Submit(ctx, cmd.Args().First())
}

func sendFeedback(ctx context.Context, cmd *cli.Command, svc *ideaservice.Service) (any, error) {
	if cmd.Args().Len() != 1 {
		return nil, errors.New("usage: feedback TEXT")
	}
	id, err := svc.SubmitFeedback(ctx, cmd.Args().First())
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func list(ctx context.Context, cmd *cli.Command, svc *ideaservice.Service) (any, error) {
	filter, ok := feed.ParseFilter(cmd.String("filter"))
	if !ok && cmd.String("filter") != "" {
		return nil, fmt.Errorf("unknown filter %q", cmd.String("filter"))
	}
	sortKey, ok := feed.ParseSortKey(cmd.String("sort"))
	if !ok && cmd.String("sort") != "" {
		return nil, fmt.Errorf("unknown sort %q", cmd.String("sort"))
	}
	return svc.Feed(ctx, ideaservice.FeedRequest{
		Filter: filter,
		Sort:   sortKey,
		Offset: int(cmd.Int("offset")),
		Limit:  int(cmd.Int("limit")),
	}), nil
}

func vote(ctx context.Context, cmd *cli.Command, svc *ideaservice.Service) (any, error) {
	if cmd.Args().Len() != 2 {
		return nil, errors.New("usage: vote ID STARS")
	}
	stars, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return nil, fmt.Errorf("stars: %w", err)
	}
	idea, err := svc.Vote(ctx, cmd.Args().Get(0), stars)
	if err != nil {
		return nil, err
	}
	return idea, nil
}

func random(ctx context.Context, _ *cli.Command, svc *ideaservice.Service) (any, error) {
	idea := svc.RandomUnvoted(ctx)
	if idea == nil {
		return nil, errors.New("no unvoted ideas")
	}
	return idea, nil
}

func status(_ context.Context, _ *cli.Command, svc *ideaservice.Service) (any, error) {
	return svc.Status(), nil
}

func reset(_ context.Context, _ *cli.Command, svc *ideaservice.Service) (any, error) {
	return svc.ResetSubmission(), nil
}

func main() {
	cmd := &cli.Command{
		Name:   "ideashare",
		Usage:  "Community idea board: one idea a day, star votes, and a windowed feed",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:      "submit",
				Usage:     "Submit today's idea",
				ArgsUsage: "TEXT",
				Action:    withService(submit),
			},
			{
				Name:  "list",
				Usage: "Print the visible feed window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Usage: "all, voted or unvoted"},
					&cli.StringFlag{Name: "sort", Usage: "date, stars or views"},
					&cli.IntFlag{Name: "offset", Usage: "Scroll offset in pixels"},
					&cli.IntFlag{Name: "limit", Usage: "How many ideas to load"},
				},
				Action: withService(list),
			},
			{
				Name:      "vote",
				Usage:     "Rate an idea with 1 to 5 stars",
				ArgsUsage: "ID STARS",
				Action:    withService(vote),
			},
			{
				Name:      "feedback",
				Usage:     "Send feedback about the app",
				ArgsUsage: "TEXT",
				Action:    withService(sendFeedback),
			},
			{
				Name:   "random",
				Usage:  "Show a random idea nobody has voted on",
				Action: withService(random),
			},
			{
				Name:   "status",
				Usage:  "Show whether an idea can be submitted today",
				Action: withService(status),
			},
			{
				Name:   "reset",
				Usage:  "Clear today's local submission record",
				Action: withService(reset),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
