package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize text logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("json")); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("ledger").With(String("user", "u1")).Info(context.Background(), "award applied",
		Int64("points", 23),
		Bool("duplicate", false),
		Alert("invariant"),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "award applied" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "ledger" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["user"] != "u1" {
		t.Errorf("user = %v", rec["user"])
	}
	if rec["alert"] != "invariant" {
		t.Errorf("alert = %v", rec["alert"])
	}
	if src, _ := rec["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %v, want caller file", rec["source"])
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %s", buf.String())
	}
	Get().Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn record missing: %s", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNop(t *testing.T) {
	Nop().Named("x").With(Int("n", 1)).Error(context.Background(), "dropped")
}
