package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"quarry.dev/asana-task-bridge/internal/asana"
	"quarry.dev/asana-task-bridge/internal/cache"
	"quarry.dev/asana-task-bridge/internal/config"
	"quarry.dev/asana-task-bridge/internal/github"
	"quarry.dev/asana-task-bridge/internal/links"
	"quarry.dev/asana-task-bridge/internal/page"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	asanaToken := os.Getenv("ASANA_TOKEN")
	if asanaToken == "" {
		return fmt.Errorf("ASANA_TOKEN is required")
	}

	githubToken := os.Getenv("GITHUB_TOKEN")
	if githubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}

	webhookSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}

	asanaClient := asana.NewClient(asanaToken)
	if cfg.Asana.BaseURL != "" {
		asanaClient.SetBaseURL(cfg.Asana.BaseURL)
	}
	taskCache := cache.New(asanaClient, cfg.Cache.TTL.Std())
	rewriter := links.NewRewriter(newTitleLookup(taskCache))

	ghClient := github.NewClient(githubToken, cfg.GitHub.Owner, cfg.GitHub.Repo)
	if cfg.GitHub.BaseURL != "" {
		ghClient.SetBaseURL(cfg.GitHub.BaseURL)
	}

	handler := github.NewWebhookHandler(webhookSecret, rewriter, ghClient)
	if len(cfg.GitHub.Actions) > 0 {
		handler.SetActions(cfg.GitHub.Actions)
	}

	renderer, err := page.NewRenderer(cfg.RepoSlug())
	if err != nil {
		return fmt.Errorf("initialize renderer: %w", err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	mux.Handle("GET /static/", http.StripPrefix("/static/", renderer.StaticHandler()))

	mux.Handle("POST /webhook/github", handler)

	mux.HandleFunc("GET /preview", func(w http.ResponseWriter, r *http.Request) {
		if err := renderer.RenderForm(w); err != nil {
			slog.Error("render preview form", "error", err)
		}
	})

	mux.HandleFunc("POST /preview", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}
		body := r.PostFormValue("body")
		res := rewriter.Rewrite(r.Context(), body)
		if err := renderer.RenderPreview(w, body, res.Body, res.Count); err != nil {
			slog.Error("render preview", "error", err)
		}
	})

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "addr", addr, "repo", cfg.RepoSlug())
	return http.ListenAndServe(addr, mux)
}

// newTitleLookup adapts the task cache to the rewrite engine's capability.
// A missing task is reported as an error so the engine leaves its URL alone.
func newTitleLookup(taskCache *cache.Cache) links.TitleLookup {
	return func(ctx context.Context, gid string) (string, error) {
		task, err := taskCache.Get(ctx, gid)
		if err != nil {
			return "", err
		}
		if task == nil {
			return "", fmt.Errorf("task %s not found", gid)
		}
		return task.Title(), nil
	}
}
