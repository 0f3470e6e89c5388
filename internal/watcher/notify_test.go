package watcher

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"
)

func TestUrgency(t *testing.T) {
	tests := map[string]string{
		LevelCritical: "critical",
		LevelWarning:  "normal",
		LevelInfo:     "low",
		"":            "low",
	}
	for level, want := range tests {
		if got := urgency(level); got != want {
			t.Errorf("urgency(%q) = %q, want %q", level, got, want)
		}
	}
}

func TestWriteAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAlert(&buf, Alert{Level: LevelWarning, Title: "Passive noise spike", Message: "72% passive"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := buf.String(), "[warning] Passive noise spike: 72% passive\n"; got != want {
		t.Errorf("writeAlert = %q, want %q", got, want)
	}
}

func TestNotifyWith_Fallback(t *testing.T) {
	alert := Alert{Level: LevelInfo, Title: "New activity", Message: "+3"}
	want := "[info] New activity: +3\n"

	tests := map[string]notifier{
		"no notifier":   nil,
		"tool missing":  func(Alert) *exec.Cmd { return nil },
		"command fails": func(Alert) *exec.Cmd { return exec.Command("/nonexistent/pluginwatch-notify") },
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := notifyWith(build, &buf, alert); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if buf.String() != want {
				t.Errorf("fallback = %q, want %q", buf.String(), want)
			}
		})
	}
}

func TestNotifyWith_CommandSucceeds(t *testing.T) {
	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not on PATH")
	}
	var buf bytes.Buffer
	if err := notifyWith(func(Alert) *exec.Cmd { return exec.Command(bin) }, &buf, Alert{Title: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("fallback written on success: %q", buf.String())
	}
}

func TestOsascript_Script(t *testing.T) {
	cmd := osascript(Alert{Level: LevelCritical, Title: "Ingest stalled", Message: "No new events"})
	if len(cmd.Args) != 3 || cmd.Args[1] != "-e" {
		t.Fatalf("args = %q", cmd.Args)
	}
	script := cmd.Args[2]
	for _, want := range []string{`"No new events"`, `subtitle "Ingest stalled"`, `sound name "Basso"`} {
		if !strings.Contains(script, want) {
			t.Errorf("script %q missing %s", script, want)
		}
	}
	if quiet := osascript(Alert{Level: LevelInfo}); strings.Contains(quiet.Args[2], "sound") {
		t.Errorf("info alert plays a sound: %q", quiet.Args[2])
	}
}
