package logging

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileOutputIsJSONWhenNotATerminal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	if err != nil {
		t.Fatal(err)
	}
	defer stderr.Close()

	logFile := filepath.Join(dir, "rack.log")
	l, closer, err := New(Options{Level: "debug", File: logFile, MaxSizeMB: 1}, stderr)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("block", "n", 3)
	l.Info("plugin changed", "kind", "gain")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{logFile, stderr.Name()} {
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		var msgs []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var rec map[string]any
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				t.Fatalf("%s: not JSON: %q", path, sc.Text())
			}
			msgs = append(msgs, rec["msg"].(string))
		}
		f.Close()
		if strings.Join(msgs, ",") != "block,plugin changed" {
			t.Fatalf("%s: messages %v", path, msgs)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	t.Parallel()

	stderr, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	if err != nil {
		t.Fatal(err)
	}
	defer stderr.Close()

	l, _, err := New(Options{Level: "warn", Format: "text"}, stderr)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown")

	data, err := os.ReadFile(stderr.Name())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("output %q", out)
	}
}

func TestBadLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Options{Level: "chatty"}, os.Stderr); err == nil {
		t.Fatal("expected error")
	}
}
