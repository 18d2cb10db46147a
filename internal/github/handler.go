package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"quarry.dev/asana-task-bridge/internal/links"
)

const maxBodySize = 1 << 20 // 1 MB

// Rewriter turns a PR description into its titled form.
type Rewriter interface {
	Rewrite(ctx context.Context, body string) links.Result
}

// BodyUpdater persists a rewritten description back to the host platform.
type BodyUpdater interface {
	UpdateBody(ctx context.Context, number int, body string) error
}

var defaultActions = []string{"opened", "edited", "reopened"}

type WebhookHandler struct {
	secret   []byte
	rewriter Rewriter
	updater  BodyUpdater
	actions  map[string]bool
}

func NewWebhookHandler(secret string, rewriter Rewriter, updater BodyUpdater) *WebhookHandler {
	h := &WebhookHandler{
		secret:   []byte(secret),
		rewriter: rewriter,
		updater:  updater,
		actions:  make(map[string]bool),
	}
	for _, a := range defaultActions {
		h.actions[a] = true
	}
	return h
}

// SetActions replaces the pull_request actions the handler reacts to.
func (h *WebhookHandler) SetActions(actions []string) {
	h.actions = make(map[string]bool, len(actions))
	for _, a := range actions {
		h.actions[a] = true
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	if r.Header.Get("X-GitHub-Event") != "pull_request" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload struct {
		Action      string      `json:"action"`
		PullRequest PullRequest `json:"pull_request"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if !h.actions[payload.Action] {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.retitle(r.Context(), payload.PullRequest)

	// Always 200 so GitHub does not retry the delivery.
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) retitle(ctx context.Context, pr PullRequest) {
	res := h.rewriter.Rewrite(ctx, pr.Body)
	if !res.Changed {
		return
	}

	if res.Body == pr.Body {
		// Every occurrence was already correct; nothing to write back.
		slog.Info("pull request already reconciled", "number", pr.Number, "count", res.Count)
		return
	}

	if err := h.updater.UpdateBody(ctx, pr.Number, res.Body); err != nil {
		slog.Error("failed to update pull request body", "number", pr.Number, "error", err)
		return
	}
	slog.Info("retitled pull request links", "number", pr.Number, "count", res.Count)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	sig, err := hex.DecodeString(signature[len("sha256="):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
