package links

import (
	"regexp"
	"sort"
	"strings"
)

// Asana task URLs come in several generations of path shapes. Each matcher
// recognizes one shape and returns the task GID it carries; for a given line
// the first matcher that fires wins, so the later entries only catch what the
// earlier, more specific ones reject.
type matcher func(line string) (gid string, ok bool)

var matchers = []matcher{
	// Current format, GID in the final path segment: .../task/123 or .../item/123.
	regexMatcher(regexp.MustCompile(`/(?:task|item)/(\d+)(?:/f)?/?(?:[?#]\S*)?$`)),
	// Project boards: .../project/<project>/task/<gid>.
	regexMatcher(regexp.MustCompile(`/project/\d+/task/(\d+)`)),
	// Same with explicit workspace and space segments in front.
	regexMatcher(regexp.MustCompile(`/\d+/\d+/project/\d+/task/(\d+)`)),
	matchLegacyPath,
	// Inbox items: .../inbox/<user>/item/<gid>.
	regexMatcher(regexp.MustCompile(`/inbox/\d+/item/(\d+)`)),
}

func regexMatcher(re *regexp.Regexp) matcher {
	return func(line string) (string, bool) {
		m := re.FindStringSubmatch(line)
		if len(m) < 2 || m[1] == "" {
			return "", false
		}
		return m[1], true
	}
}

var legacyPathRe = regexp.MustCompile(`https://app\.asana\.com((?:/[0-9a-z_]+)+)/?`)

// Path segments that may appear alongside the numeric GIDs in pre-2024 URLs.
var legacyKeywords = map[string]bool{
	"f":        true,
	"list":     true,
	"board":    true,
	"timeline": true,
	"calendar": true,
	"files":    true,
	"search":   true,
	"inbox":    true,
}

// matchLegacyPath handles https://app.asana.com/0/<project>/<gid> style URLs,
// where the task GID is the last numeric path segment. A workspace or project
// id would win over the task id when a /task/ segment is present, so the rule
// is suppressed for those lines.
func matchLegacyPath(line string) (string, bool) {
	if strings.Contains(line, "/task/") {
		return "", false
	}
	m := legacyPathRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return "", false
	}
	gid := ""
	for _, seg := range strings.Split(strings.Trim(m[1], "/"), "/") {
		if isDigits(seg) {
			gid = seg
			continue
		}
		if !legacyKeywords[seg] {
			return "", false
		}
	}
	return gid, gid != ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ExtractTaskGIDs returns the distinct Asana task GIDs found in text, in
// ascending lexicographic order. Each line contributes at most one GID.
// The sorted order is part of the contract; callers rely on it being stable.
func ExtractTaskGIDs(text string) []string {
	seen := make(map[string]bool)
	var gids []string
	for _, line := range splitLines(text) {
		for _, match := range matchers {
			gid, ok := match(line)
			if !ok {
				continue
			}
			if !seen[gid] {
				seen[gid] = true
				gids = append(gids, gid)
			}
			break
		}
	}
	sort.Strings(gids)
	return gids
}

// splitLines flattens both CRLF and LF separated text into one line sequence.
func splitLines(text string) []string {
	var lines []string
	for _, chunk := range strings.Split(text, "\r\n") {
		lines = append(lines, strings.Split(chunk, "\n")...)
	}
	return lines
}
