package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFile parses one JSONL audit file. Unparseable lines are returned as
// an error with the line number; the audit trail is append-only, so a bad
// line means corruption worth surfacing, not skipping.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", filepath.Base(path), lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}

	return records, nil
}

// ReadDay reads the records one module wrote on a calendar day (YYYYMMDD).
// A missing file yields no records: the module simply wrote nothing that day.
func ReadDay(dir, module, day string) ([]Record, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", strings.ToLower(module), day))
	records, err := ReadFile(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

// ListDays returns the calendar days (YYYYMMDD) a module has files for,
// sorted ascending.
func ListDays(dir, module string) ([]string, error) {
	prefix := strings.ToLower(module) + "_"
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list audit dir: %w", err)
	}

	var days []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".jsonl")
		if len(day) == 8 {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days, nil
}
