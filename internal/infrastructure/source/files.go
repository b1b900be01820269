// Package source reads knowledge records from local files.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/campus-assistant/internal/core/knowledge"
)

const maxLineBytes = 1 << 20

// Files reads direct records from a .json, .yaml/.yml or .xlsx file and
// instruction records from a .jsonl file. A missing file reads as empty.
type Files struct {
	DirectPath      string
	InstructionPath string
}

func (f Files) LoadDirect(ctx context.Context) ([]knowledge.DirectRecord, error) {
	if strings.TrimSpace(f.DirectPath) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(f.DirectPath)); ext {
	case ".xlsx":
		if _, err := os.Stat(f.DirectPath); errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(ctx, "knowledge_source_missing", "path", f.DirectPath)
			return nil, nil
		}
		return readWorkbook(f.DirectPath)
	case ".json", ".yaml", ".yml":
		raw, err := readOptional(ctx, f.DirectPath)
		if err != nil || raw == nil {
			return nil, err
		}
		if ext == ".json" {
			return decodeJSONRecords(ctx, raw)
		}
		return decodeYAMLRecords(ctx, raw)
	default:
		return nil, fmt.Errorf("unsupported knowledge file type %q", ext)
	}
}

func (f Files) LoadInstructions(ctx context.Context) ([]knowledge.InstructionRecord, error) {
	if strings.TrimSpace(f.InstructionPath) == "" {
		return nil, nil
	}
	raw, err := readOptional(ctx, f.InstructionPath)
	if err != nil || raw == nil {
		return nil, err
	}

	var out []knowledge.InstructionRecord
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec knowledge.InstructionRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			slog.WarnContext(ctx, "instruction_record_skipped", "path", f.InstructionPath, "line", line, "error", err)
			continue
		}
		rec.LineNumber = line
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan instruction file: %w", err)
	}
	return out, nil
}

func readOptional(ctx context.Context, path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.WarnContext(ctx, "knowledge_source_missing", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return raw, nil
}

// decodeJSONRecords decodes element by element so that one malformed record
// does not discard the rest of the file.
func decodeJSONRecords(ctx context.Context, raw []byte) ([]knowledge.DirectRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("parse knowledge json: %w", err)
	}
	out := make([]knowledge.DirectRecord, 0, len(elems))
	for i, elem := range elems {
		var rec knowledge.DirectRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			slog.WarnContext(ctx, "direct_record_skipped", "index", i, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeYAMLRecords(ctx context.Context, raw []byte) ([]knowledge.DirectRecord, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse knowledge yaml: %w", err)
	}
	out := make([]knowledge.DirectRecord, 0, len(nodes))
	for i := range nodes {
		var rec knowledge.DirectRecord
		if err := nodes[i].Decode(&rec); err != nil {
			slog.WarnContext(ctx, "direct_record_skipped", "index", i, "line", nodes[i].Line, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
