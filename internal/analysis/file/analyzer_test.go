package file

import (
	"strings"
	"testing"
)

func TestAnalyzeGoSource(t *testing.T) {
	src := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"
	report := Analyze("main.go", src)
	if report.Kind != Code {
		t.Fatalf("expected code, got %s", report.Kind)
	}
	if report.Lines != 7 {
		t.Fatalf("expected 7 lines, got %d", report.Lines)
	}
	if report.Headline != "package main" {
		t.Fatalf("unexpected headline %q", report.Headline)
	}
}

func TestAnalyzeLogWithoutExtension(t *testing.T) {
	content := "2024-03-09 INFO started\n2024-03-09 ERROR failed to connect\n2024-03-09 WARN retrying\n"
	report := Analyze("output", content)
	if report.Kind != Log {
		t.Fatalf("expected log, got %s", report.Kind)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	report := Analyze("empty.bin", "")
	if report.Kind != Unknown || report.Lines != 0 || report.Words != 0 {
		t.Fatalf("unexpected report for empty content: %+v", report)
	}
	if !strings.Contains(report.Summary(), "unrecognised") {
		t.Fatalf("unexpected summary %q", report.Summary())
	}
}

func TestSummaryMentionsStats(t *testing.T) {
	report := Analyze("notes.txt", "The cat and the dog.\nSecond line of the note.")
	summary := report.Summary()
	if report.Kind != Prose {
		t.Fatalf("expected prose, got %s", report.Kind)
	}
	for _, want := range []string{"notes.txt", "2 lines", "plain text"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary %q missing %q", summary, want)
		}
	}
}
