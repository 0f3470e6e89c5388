package watcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

const notifyTitle = "pluginwatch"

// A notifier builds the desktop notification command for an alert. It
// returns nil when the platform tool is missing.
type notifier func(Alert) *exec.Cmd

var notifiers = map[string]notifier{
	"darwin": osascript,
	"linux":  notifySend,
}

// Notify raises a desktop notification for alert. Platforms without a
// notifier, and notifiers that fail, get a line on stderr instead.
func Notify(alert Alert) error {
	return notifyWith(notifiers[runtime.GOOS], os.Stderr, alert)
}

func notifyWith(build notifier, fallback io.Writer, alert Alert) error {
	if build != nil {
		if cmd := build(alert); cmd != nil && cmd.Run() == nil {
			return nil
		}
	}
	return writeAlert(fallback, alert)
}

func osascript(alert Alert) *exec.Cmd {
	script := fmt.Sprintf(`display notification %q with title %q subtitle %q`, alert.Message, notifyTitle, alert.Title)
	if alert.Level == LevelCritical {
		script += ` sound name "Basso"`
	}
	return exec.Command("osascript", "-e", script)
}

func notifySend(alert Alert) *exec.Cmd {
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return nil
	}
	return exec.Command(bin, "-u", urgency(alert.Level), notifyTitle+": "+alert.Title, alert.Message)
}

var urgencies = map[string]string{
	LevelCritical: "critical",
	LevelWarning:  "normal",
}

// urgency maps an alert level onto a notify-send urgency.
func urgency(level string) string {
	if u, ok := urgencies[level]; ok {
		return u
	}
	return "low"
}

func writeAlert(w io.Writer, alert Alert) error {
	_, err := fmt.Fprintf(w, "[%s] %s: %s\n", alert.Level, alert.Title, alert.Message)
	return err
}
