package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/output"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Store an event envelope from a file or stdin",
	Long: `Normalize and store events without going through the HTTP service,
for backfills and exports from other environments. The input is either an
ingest envelope ({"source": ..., "events": [...]}) or a bare JSON array of
events. Large inputs are stored in batches of 1000 events.

Examples:
  pluginwatch ingest export.json
  cat export.json | pluginwatch ingest -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	} else if !stdinIsPipe() {
		return errors.New("no input: pass a file or pipe an envelope to stdin")
	}

	envelopes, err := readEnvelopes(r)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	var total dashboard.IngestResult
	for _, env := range envelopes {
		res, err := svc.Ingest(cmd.Context(), env)
		total.Accepted += res.Accepted
		total.Inserted += res.Inserted
		if err != nil {
			return fmt.Errorf("ingesting events: %w", err)
		}
	}

	if flagJSON {
		return writeJSON(os.Stdout, total)
	}
	fmt.Println(output.KV("Accepted", total.Accepted))
	fmt.Println(output.KV("Inserted", total.Inserted))
	if rejected := total.Accepted - total.Inserted; rejected > 0 {
		fmt.Println(output.StyleWarning.Render(fmt.Sprintf(" %d events could not be stored", rejected)))
	}
	return nil
}

// readEnvelopes decodes an envelope or a bare event array and splits it
// into envelopes of at most event.MaxEventsPerBatch events, each carrying
// the original envelope fields.
func readEnvelopes(r io.Reader) ([]map[string]any, error) {
	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding input: %w", err)
	}

	var env map[string]any
	switch v := raw.(type) {
	case []any:
		env = map[string]any{"events": v}
	case map[string]any:
		env = v
	default:
		return nil, errors.New("input must be a JSON object or array")
	}

	events, _ := env["events"].([]any)
	if len(events) == 0 {
		return nil, event.ErrNoEvents
	}

	var out []map[string]any
	for start := 0; start < len(events); start += event.MaxEventsPerBatch {
		end := min(start+event.MaxEventsPerBatch, len(events))
		chunk := make(map[string]any, len(env))
		for k, v := range env {
			chunk[k] = v
		}
		chunk["events"] = events[start:end]
		out = append(out, chunk)
	}
	return out, nil
}

// stdinIsPipe reports whether stdin is redirected rather than a terminal.
func stdinIsPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
