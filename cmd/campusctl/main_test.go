package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func setupKnowledge(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data.json")
	if err := os.WriteFile(data, []byte(`[{"question":"What is the tuition fee?","answer":"50000 BDT per semester"}]`), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	t.Setenv("DATA_FILE", data)
	t.Setenv("INSTRUCTION_FILE", filepath.Join(dir, "none.jsonl"))
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", filepath.Join(dir, "state"))
	t.Setenv("FEEDBACK_EVENTS_ENABLED", "false")
	return dir
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("campusctl %v: %v", args, err)
	}
	return out.Bytes()
}

func TestAskAnswersFromKnowledge(t *testing.T) {
	setupKnowledge(t)

	var outcome domain.SearchOutcome
	if err := json.Unmarshal(run(t, "--offline", "ask", "What", "is", "the", "tuition", "fee?"), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Method != domain.MethodHighConfidenceJSON || outcome.Answer != "50000 BDT per semester" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestDislikePersistsAcrossInvocations(t *testing.T) {
	setupKnowledge(t)

	run(t, "--offline", "feedback", "dislike", "-q", "What is the tuition fee?", "-a", "50000 BDT per semester")

	var stats domain.EngineStats
	if err := json.Unmarshal(run(t, "--offline", "stats"), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.AvailableItems != 0 || stats.TotalOriginalData != 1 {
		t.Fatalf("expected blocked answer to stay excluded, got %+v", stats)
	}
}

func TestIndexExportWritesFile(t *testing.T) {
	dir := setupKnowledge(t)
	out := filepath.Join(dir, "index.json")

	run(t, "--offline", "index", "export", "-o", out)

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
}

func TestIndexVerifyDecodesExport(t *testing.T) {
	dir := setupKnowledge(t)
	out := filepath.Join(dir, "index.json")
	run(t, "--offline", "index", "export", "-o", out)

	var report indexReport
	if err := json.Unmarshal(run(t, "index", "verify", "-i", out, "-q", "What is the tuition fee?"), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Rows != 1 || report.Terms == 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Result == nil || report.Result.Answer != "50000 BDT per semester" {
		t.Fatalf("decoded index should answer the indexed question, got %+v", report.Result)
	}
}

func TestIndexVerifyRejectsCorruptFile(t *testing.T) {
	dir := setupKnowledge(t)
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":99}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"index", "verify", "-i", bad})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFeedbackRejectsUnknownKind(t *testing.T) {
	setupKnowledge(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--offline", "feedback", "meh", "-a", "x"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
