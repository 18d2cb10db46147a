package links

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TitleLookup resolves a task GID to its display title. Any failure is
// treated as "no title available" and never aborts a rewrite.
type TitleLookup func(ctx context.Context, gid string) (string, error)

// Result reports one body rewrite. Count is the number of reconciled URL
// occurrences, which includes links that were already correct, so Changed
// means "occurrences reconciled" rather than "the text differs". Callers that
// persist the body should compare it against their original.
type Result struct {
	Body    string
	Changed bool
	Count   int
}

var taskURLRe = regexp.MustCompile(`https://app\.asana\.com/[^\s<>)\]]+`)

// taskInfo holds one resolved task per unique URL for the duration of a
// single RewriteBody call. Nothing survives across calls.
type taskInfo struct {
	url       string
	gid       string
	title     string
	sanitized string
}

// Literal brackets in a title would read as link boundaries once embedded in
// a label, so they are downgraded to parentheses.
var titleSanitizer = strings.NewReplacer("[", "(", "]", ")")

// RewriteBody replaces every Asana task URL in body with a markdown link
// labeled by the task's title, and reconciles links that already exist.
// Titles for distinct URLs are fetched concurrently and exactly once; a URL
// whose lookup fails is left untouched. RewriteBody never fails.
func RewriteBody(ctx context.Context, body string, lookup TitleLookup) Result {
	if body == "" {
		return Result{}
	}

	resolved := resolveTasks(ctx, body, lookup)
	if len(resolved) == 0 {
		return Result{Body: body}
	}

	// Longer URLs first, so a URL that is a strict prefix of another is never
	// found again inside the longer one's freshly inserted link target.
	sort.Slice(resolved, func(i, j int) bool {
		if len(resolved[i].url) != len(resolved[j].url) {
			return len(resolved[i].url) > len(resolved[j].url)
		}
		return resolved[i].url < resolved[j].url
	})

	lines := strings.Split(body, "\n")
	count := 0
	for i, line := range lines {
		lines[i] = rewriteLine(line, resolved, &count)
	}

	return Result{
		Body:    strings.Join(lines, "\n"),
		Changed: count > 0,
		Count:   count,
	}
}

// resolveTasks finds every unique task URL in body that yields exactly one
// GID and fetches its title. Lookups fan out concurrently, one goroutine per
// URL, each writing only its own slot; a failed lookup leaves its slot nil
// without disturbing the others.
func resolveTasks(ctx context.Context, body string, lookup TitleLookup) []*taskInfo {
	type candidate struct {
		url string
		gid string
	}

	var candidates []candidate
	for _, u := range uniqueTaskURLs(body) {
		gids := ExtractTaskGIDs(u)
		if len(gids) != 1 {
			continue
		}
		candidates = append(candidates, candidate{url: u, gid: gids[0]})
	}

	slots := make([]*taskInfo, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c candidate) {
			defer wg.Done()
			title, err := lookup(ctx, c.gid)
			if err != nil {
				slog.Debug("title lookup failed, leaving URL as-is", "gid", c.gid, "error", err)
				return
			}
			slots[i] = &taskInfo{
				url:       c.url,
				gid:       c.gid,
				title:     title,
				sanitized: titleSanitizer.Replace(title),
			}
		}(i, c)
	}
	wg.Wait()

	var resolved []*taskInfo
	for _, info := range slots {
		if info != nil {
			resolved = append(resolved, info)
		}
	}
	return resolved
}

func uniqueTaskURLs(body string) []string {
	matches := taskURLRe.FindAllString(body, -1)
	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			urls = append(urls, m)
		}
	}
	return urls
}

// rewriteLine reconciles links that already target a resolved URL, then wraps
// any plain occurrences that remain. Confining edits to one line keeps a
// replacement from ever corrupting markdown on an adjacent line.
func rewriteLine(line string, resolved []*taskInfo, count *int) string {
	for _, info := range resolved {
		line = reconcileExistingLinks(line, info, count)
	}
	for _, info := range resolved {
		line = linkPlainOccurrences(line, info, count)
	}
	return line
}

// reconcileExistingLinks finds [label](url) constructs targeting info's URL.
// A link whose label already equals the raw title, or whose label carries a
// literal bracket from a previously sanitized title, is counted but left
// alone; anything else gets the current sanitized title. The scan copies
// verbatim ranges into a fresh buffer so indexes never drift.
func reconcileExistingLinks(line string, info *taskInfo, count *int) string {
	anchor := "](" + info.url + ")"
	var out strings.Builder
	pos := 0
	for {
		rel := strings.Index(line[pos:], anchor)
		if rel < 0 {
			break
		}
		idx := pos + rel
		end := idx + len(anchor)
		labelStart := findLabelStart(line, idx)
		if labelStart < 0 || labelStart < pos {
			// Not a well-formed link; the plain-occurrence pass decides.
			out.WriteString(line[pos:end])
			pos = end
			continue
		}
		label := line[labelStart+1 : idx]
		out.WriteString(line[pos:labelStart])
		if label == info.title || strings.Contains(label, "[") {
			out.WriteString(line[labelStart:end])
		} else {
			out.WriteString(linkText(info.sanitized, info.url))
		}
		*count++
		pos = end
	}
	out.WriteString(line[pos:])
	return out.String()
}

// linkPlainOccurrences wraps every bare occurrence of info's URL that does
// not already sit inside a markdown link. Spans are recomputed against the
// current line text, so links inserted for other URLs are respected, and the
// scan advances past each replacement instead of re-reading it.
func linkPlainOccurrences(line string, info *taskInfo, count *int) string {
	spans := linkSpans(line)
	var out strings.Builder
	pos := 0
	for {
		rel := strings.Index(line[pos:], info.url)
		if rel < 0 {
			break
		}
		start := pos + rel
		end := start + len(info.url)
		if inSpans(spans, start, end) {
			out.WriteString(line[pos:end])
			pos = end
			continue
		}
		out.WriteString(line[pos:start])
		out.WriteString(linkText(info.sanitized, info.url))
		*count++
		pos = end
	}
	out.WriteString(line[pos:])
	return out.String()
}

// Rewriter binds a TitleLookup so transports can rewrite bodies without
// carrying the capability around themselves.
type Rewriter struct {
	lookup TitleLookup
}

func NewRewriter(lookup TitleLookup) *Rewriter {
	return &Rewriter{lookup: lookup}
}

func (r *Rewriter) Rewrite(ctx context.Context, body string) Result {
	return RewriteBody(ctx, body, r.lookup)
}
