package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/registrum/registrum/pkg/chain"
	"github.com/registrum/registrum/pkg/config"
)

func testConfig(dbPath string) *config.Config {
	return &config.Config{
		DatabasePath: dbPath,
		LogLevel:     "ERROR",
		IssuerName:   "Test Registry",
		LegalNotice:  "test notice",
	}
}

func writeHistoryFile(t *testing.T, history []chain.Entry) string {
	t.Helper()
	data, err := json.Marshal(history)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildHistory(t *testing.T) []chain.Entry {
	t.Helper()
	c := chain.New()
	for _, a := range []chain.Action{chain.ActionCreate, chain.ActionSubmit, chain.ActionSign} {
		if _, err := c.Append(a, "actor", nil); err != nil {
			t.Fatal(err)
		}
	}
	return c.Snapshot()
}

func TestRunNoArgs(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"registrum"}, &out, &errOut); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "usage:") {
		t.Error("expected usage text")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"registrum", "bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestVerifyCmdValidHistory(t *testing.T) {
	path := writeHistoryFile(t, buildHistory(t))

	var out, errOut bytes.Buffer
	code := runVerifyCmd([]string{"-file", path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "VERIFIED") {
		t.Errorf("expected VERIFIED, got %q", out.String())
	}
}

func TestVerifyCmdCorruptedHistory(t *testing.T) {
	history := buildHistory(t)
	history[1].PerformedBy = "intruder"
	path := writeHistoryFile(t, history)

	var out, errOut bytes.Buffer
	code := runVerifyCmd([]string{"-file", path}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out.String(), "CORRUPTED") {
		t.Errorf("expected CORRUPTED, got %q", out.String())
	}
}

func TestVerifyCmdJSONReport(t *testing.T) {
	path := writeHistoryFile(t, buildHistory(t))

	var out, errOut bytes.Buffer
	code := runVerifyCmd([]string{"-file", path, "-json"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var report map[string]any
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report["status"] != "VERIFIED" {
		t.Errorf("unexpected report: %v", report)
	}
}

func TestVerifyCmdMissingFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := runVerifyCmd(nil, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestVerifyCmdUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	if code := runVerifyCmd([]string{"-file", path}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2 for malformed file, got %d", code)
	}
}

func TestDemoAndExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	var out, errOut bytes.Buffer
	cfgArgs := []string{"-db", dbPath}
	code := runDemoCmd(cfgArgs, testConfig(dbPath), &out, &errOut)
	if code != 0 {
		t.Fatalf("demo failed with %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "chain: VERIFIED") {
		t.Errorf("demo should verify its chain, got: %s", out.String())
	}

	out.Reset()
	code = runExportCmd([]string{"-db", dbPath}, testConfig(dbPath), &out, &errOut)
	if code != 0 {
		t.Fatalf("export failed with %d: %s", code, errOut.String())
	}
	var bundle map[string]any
	if err := json.Unmarshal(out.Bytes(), &bundle); err != nil {
		t.Fatalf("export output is not JSON: %v", err)
	}
	if _, ok := bundle["history"]; !ok {
		t.Error("export bundle missing history")
	}
}
