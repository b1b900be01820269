package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "campus-api", "info", "json")
	logger.Info("index_rebuilt", "items", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["service"] != "campus-api" || record["msg"] != "index_rebuilt" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "campus-api", "warn", "text")
	logger.Info("search_completed")
	logger.Warn("generation_unavailable")

	out := buf.String()
	if strings.Contains(out, "search_completed") {
		t.Fatalf("info record must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "generation_unavailable") {
		t.Fatalf("expected warn record: %s", out)
	}
}
