package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "bankledger", "test")
	logger.Debug("hello", "account", "alice")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["app"] != "bankledger" || record["env"] != "test" {
		t.Fatalf("missing app/env attributes: %v", record)
	}
	if record["account"] != "alice" {
		t.Fatalf("missing account attribute: %v", record)
	}
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud", "bankledger", "test")
	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug record should be filtered at info level: %s", buf.String())
	}
	logger.Info("kept")
	if buf.Len() == 0 {
		t.Fatalf("info record should be written")
	}
}
