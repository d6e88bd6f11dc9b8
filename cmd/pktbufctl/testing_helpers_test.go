package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

// testScenarioPath returns the path to a scenario under testdata.
func testScenarioPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("test file not found: %s", path)
	}
	return path
}

// resetFlags restores the global flags after a test changes them.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		verbose, quiet, jsonOut, mapped = false, false, false, false
		backendName = "static"
		backendSize = alloc.DefaultStaticConfig.Size
		logLevel = ""
	})
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done

	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and returns it decoded.
func assertJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
	return result
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
