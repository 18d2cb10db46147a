package links

import "strings"

// span is a half-open [start, end) byte range within a line.
type span struct {
	start, end int
}

func (s span) contains(start, end int) bool {
	return start >= s.start && end <= s.end
}

func inSpans(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.contains(start, end) {
			return true
		}
	}
	return false
}

// findLabelStart locates the opening bracket of the link label whose "](" sits
// at idx. Labels may carry literal brackets left over from earlier title
// rewrites, so the bracket is found by depth-matching backwards instead of a
// regexp. Returns -1 when no opening bracket exists.
func findLabelStart(line string, idx int) int {
	depth := 0
	for i := idx - 1; i >= 0; i-- {
		switch line[i] {
		case ']':
			depth++
		case '[':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// markdownLinkAt resolves the full [label](target) extent around the "](" at
// idx. The target must be a single token with no whitespace, which is all the
// rewrite engine ever emits or needs to recognize.
func markdownLinkAt(line string, idx int) (labelStart, end int, ok bool) {
	j := idx + 2
	for j < len(line) && line[j] != ')' {
		if line[j] == ' ' || line[j] == '\t' {
			return 0, 0, false
		}
		j++
	}
	if j == len(line) {
		return 0, 0, false
	}
	labelStart = findLabelStart(line, idx)
	if labelStart < 0 {
		return 0, 0, false
	}
	return labelStart, j + 1, true
}

// linkSpans returns the extents of every [label](target) construct in line.
func linkSpans(line string) []span {
	var spans []span
	for i := 0; i+1 < len(line); i++ {
		if line[i] != ']' || line[i+1] != '(' {
			continue
		}
		start, end, ok := markdownLinkAt(line, i)
		if !ok {
			continue
		}
		spans = append(spans, span{start: start, end: end})
		i = end - 1
	}
	return spans
}

// linkText renders a markdown link for a resolved task.
func linkText(label, url string) string {
	var b strings.Builder
	b.Grow(len(label) + len(url) + 4)
	b.WriteByte('[')
	b.WriteString(label)
	b.WriteString("](")
	b.WriteString(url)
	b.WriteByte(')')
	return b.String()
}
