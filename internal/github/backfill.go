package github

import (
	"context"
	"fmt"
	"log/slog"
)

// PullRequestAPI is the part of Client the backfill pass needs.
type PullRequestAPI interface {
	ListPullRequests(ctx context.Context, state string) ([]PullRequest, error)
	UpdateBody(ctx context.Context, number int, body string) error
}

// Retitler runs the rewrite engine over a repository's existing pull
// requests, the one-shot counterpart of the webhook handler.
type Retitler struct {
	api      PullRequestAPI
	rewriter Rewriter
}

func NewRetitler(api PullRequestAPI, rewriter Rewriter) *Retitler {
	return &Retitler{api: api, rewriter: rewriter}
}

// Report describes what happened to one pull request.
type Report struct {
	Number int
	Count  int
	// TextChanged is false when every occurrence was already correct.
	TextChanged bool
	Updated     bool
}

// Run rewrites the descriptions of all pull requests in the given state.
// With apply unset it only reports what it would do. A failure to update one
// PR is logged and skipped so the rest of the batch still goes through.
func (r *Retitler) Run(ctx context.Context, state string, apply bool) ([]Report, error) {
	prs, err := r.api.ListPullRequests(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	slog.Info("scanning pull requests", "state", state, "total", len(prs))

	var reports []Report
	for _, pr := range prs {
		res := r.rewriter.Rewrite(ctx, pr.Body)
		if !res.Changed {
			continue
		}
		report := Report{
			Number:      pr.Number,
			Count:       res.Count,
			TextChanged: res.Body != pr.Body,
		}
		if apply && report.TextChanged {
			if err := r.api.UpdateBody(ctx, pr.Number, res.Body); err != nil {
				slog.Error("failed to update pull request", "number", pr.Number, "error", err)
				reports = append(reports, report)
				continue
			}
			report.Updated = true
		}
		reports = append(reports, report)
	}
	return reports, nil
}
