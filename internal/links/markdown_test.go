package links

import (
	"reflect"
	"testing"
)

func TestLinkSpans(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []span
	}{
		{
			name: "no links",
			line: "plain text with https://app.asana.com/0/1/2",
			want: nil,
		},
		{
			name: "single link",
			line: "[a](http://x)",
			want: []span{{start: 0, end: 13}},
		},
		{
			name: "link with surrounding text",
			line: "pre [a](u) post",
			want: []span{{start: 4, end: 10}},
		},
		{
			name: "two links",
			line: "[a](u) and [b](v)",
			want: []span{{start: 0, end: 6}, {start: 11, end: 17}},
		},
		{
			name: "label containing brackets",
			line: "[fix [now]](u)",
			want: []span{{start: 0, end: 14}},
		},
		{
			name: "unclosed target",
			line: "[a](u",
			want: nil,
		},
		{
			name: "target with whitespace is not a link",
			line: "[a](u v)",
			want: nil,
		},
		{
			name: "bracket pair without target",
			line: "[checklist] item",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := linkSpans(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("linkSpans(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFindLabelStart(t *testing.T) {
	tests := []struct {
		line string
		idx  int
		want int
	}{
		{"[a](u)", 2, 0},
		{"see [a](u)", 6, 4},
		{"[fix [now]](u)", 10, 0},
		{"no bracket](u)", 10, -1},
	}
	for _, tt := range tests {
		if got := findLabelStart(tt.line, tt.idx); got != tt.want {
			t.Errorf("findLabelStart(%q, %d) = %d, want %d", tt.line, tt.idx, got, tt.want)
		}
	}
}
