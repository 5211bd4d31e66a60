package chunking

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitByHeadersBasic(t *testing.T) {
	content := "intro text\n## First\nbody one\n## Second\nbody two\n"
	secs := splitByHeaders(content, 2, 2)
	if len(secs) != 3 {
		t.Fatalf("splitByHeaders() returned %d sections, want 3", len(secs))
	}
	if secs[0].Title != "" || !strings.HasPrefix(secs[0].Content, "intro") {
		t.Errorf("first section = %+v, want preamble section", secs[0])
	}
	if secs[1].Title != "First" || !strings.HasPrefix(secs[1].Content, "## First") {
		t.Errorf("second section = %+v", secs[1])
	}
	if secs[2].Title != "Second" {
		t.Errorf("third section title = %q, want Second", secs[2].Title)
	}
}

func TestSplitByHeadersNoHeaders(t *testing.T) {
	content := "just a paragraph\nwith two lines\n"
	secs := splitByHeaders(content, 2, 2)
	if len(secs) != 1 {
		t.Fatalf("splitByHeaders() returned %d sections, want 1", len(secs))
	}
	if secs[0].Title != "" {
		t.Errorf("headerless section title = %q, want empty", secs[0].Title)
	}
}

func TestExtractTOC(t *testing.T) {
	content := "# Title\nintro\n## One\nbody\n### Sub\nmore\n## Two\nbody"
	got := extractTOC(content)
	want := "Title\n  One\n    Sub\n  Two"
	if got != want {
		t.Errorf("extractTOC() = %q, want %q", got, want)
	}
}

func TestSplitIntoCodeAndText(t *testing.T) {
	text := "before\n```go\ncode here\n```\nafter"
	segs := splitIntoCodeAndText(text)
	if len(segs) != 3 {
		t.Fatalf("splitIntoCodeAndText() returned %d segments, want 3", len(segs))
	}
	if segs[0].isCode || !strings.Contains(segs[0].content, "before") {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if !segs[1].isCode || !strings.Contains(segs[1].content, "code here") {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if segs[2].isCode || !strings.Contains(segs[2].content, "after") {
		t.Errorf("segment 2 = %+v", segs[2])
	}
}

func TestFindBreakPointPrefersBlankLine(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph that keeps going and going"
	cut := findBreakPoint(text, 30)
	if !strings.HasSuffix(text[:cut], "\n\n") {
		t.Errorf("findBreakPoint() cut at %d, %q, want blank-line break", cut, text[:cut])
	}
}

func TestFindBreakPointSkipsURLDot(t *testing.T) {
	text := "see example.com for details. Another sentence follows after that one here"
	cut := findBreakPoint(text, 40)
	if strings.HasSuffix(text[:cut], "example.") {
		t.Errorf("findBreakPoint() broke on URL dot: %q", text[:cut])
	}
}

func TestFindBreakPointRejectsBelowHalf(t *testing.T) {
	text := "x. " + strings.Repeat("y", 100)
	cut := findBreakPoint(text, 50)
	if cut < 25 {
		t.Errorf("findBreakPoint() accepted a break below half the limit: cut=%d", cut)
	}
}

func TestSplitProtectedKeepsCodeBlockWhole(t *testing.T) {
	code := "```go\nfunc a() {}\n```"
	text := strings.Repeat("word ", 20) + code
	chunks := splitProtected(text, 200)
	found := false
	for _, c := range chunks {
		if strings.Contains(c, code) {
			found = true
		}
	}
	if !found {
		t.Errorf("splitProtected() broke up a small fenced code block across chunks: %v", chunks)
	}
}

func TestSplitProtectedExplodesOversizedCodeBlock(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("z", 20)
	}
	code := "```\n" + strings.Join(lines, "\n") + "\n```"
	chunks := splitProtected(code, 10)
	if len(chunks) < 2 {
		t.Fatalf("splitProtected() did not explode an oversized code block: %d chunks", len(chunks))
	}
}

func TestExtractFence(t *testing.T) {
	open, body, closeLine, ok := extractFence("```go\nline one\nline two\n```")
	if !ok {
		t.Fatal("extractFence() returned ok=false")
	}
	if open != "```go" || closeLine != "```" {
		t.Errorf("extractFence() fences = %q / %q", open, closeLine)
	}
	if body != "line one\nline two" {
		t.Errorf("extractFence() body = %q", body)
	}
}

func TestHardSliceLongLinesSplitsOversizedLine(t *testing.T) {
	longLine := strings.Repeat("a", 25)
	out := hardSliceLongLines(longLine, 10)
	want := []string{"aaaaaaaaaa", "aaaaaaaaaa", "aaaaa"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("hardSliceLongLines() = %v, want %v", out, want)
	}
}

func TestHardSliceLongLinesKeepsShortLinesGrouped(t *testing.T) {
	piece := "short one\nshort two\nshort three"
	out := hardSliceLongLines(piece, 100)
	if len(out) != 1 || out[0] != piece {
		t.Errorf("hardSliceLongLines() = %v, want single grouped piece", out)
	}
}
