package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"quarry.dev/asana-task-bridge/internal/asana"
	"quarry.dev/asana-task-bridge/internal/cache"
	"quarry.dev/asana-task-bridge/internal/config"
	"quarry.dev/asana-task-bridge/internal/github"
	"quarry.dev/asana-task-bridge/internal/links"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	apply      bool
	repo       string
	state      string
	configPath string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Rewrite Asana task links in a repository's existing pull requests",
		Long: `Scans every pull request in the repository, resolves the Asana task
links in their descriptions and rewrites bare URLs into titled markdown
links. Dry-run by default; pass --apply to update the descriptions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.apply, "apply", false, "actually update PR descriptions (default is dry-run)")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "GitHub owner/repo to scan (overrides config)")
	cmd.Flags().StringVar(&opts.state, "state", "open", "PR state to scan: open, closed or all")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to bridge.yaml")

	return cmd
}

func runBackfill(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if opts.repo != "" {
		owner, name, err := github.ParseRepo(opts.repo)
		if err != nil {
			return err
		}
		cfg.GitHub.Owner, cfg.GitHub.Repo = owner, name
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	asanaToken := os.Getenv("ASANA_TOKEN")
	if asanaToken == "" {
		return fmt.Errorf("ASANA_TOKEN is required")
	}

	ghToken := os.Getenv("GITHUB_TOKEN")
	if ghToken == "" {
		ghToken = ghAuthToken()
	}

	asanaClient := asana.NewClient(asanaToken)
	if cfg.Asana.BaseURL != "" {
		asanaClient.SetBaseURL(cfg.Asana.BaseURL)
	}
	taskCache := cache.New(asanaClient, cfg.Cache.TTL.Std())
	rewriter := links.NewRewriter(func(ctx context.Context, gid string) (string, error) {
		task, err := taskCache.Get(ctx, gid)
		if err != nil {
			return "", err
		}
		if task == nil {
			return "", fmt.Errorf("task %s not found", gid)
		}
		return task.Title(), nil
	})

	ghClient := github.NewClient(ghToken, cfg.GitHub.Owner, cfg.GitHub.Repo)
	if cfg.GitHub.BaseURL != "" {
		ghClient.SetBaseURL(cfg.GitHub.BaseURL)
	}

	retitler := github.NewRetitler(ghClient, rewriter)
	reports, err := retitler.Run(ctx, opts.state, opts.apply)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", cfg.RepoSlug(), err)
	}

	if !opts.apply {
		fmt.Println("dry-run: would reconcile:")
		for _, rep := range reports {
			status := "already up to date"
			if rep.TextChanged {
				status = "would rewrite"
			}
			fmt.Printf("  #%d: %d occurrence(s), %s\n", rep.Number, rep.Count, status)
		}
		fmt.Printf("\nre-run with --apply to update these descriptions\n")
		return nil
	}

	updated := 0
	for _, rep := range reports {
		if rep.Updated {
			updated++
		}
	}
	slog.Info("backfill complete", "reconciled", len(reports), "updated", updated)
	return nil
}

func ghAuthToken() string {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
