// Package artifacts writes per-tick evaluation reports to disk as YAML,
// one file per tick, so a run leaves an auditable trail of what the
// engine decided and why.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/engine"
)

// Writer persists tick reports under a base directory, grouped by day.
type Writer struct {
	baseDir string
}

// NewWriter creates a report writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Report is the on-disk shape of one tick.
type Report struct {
	GeneratedAt time.Time         `yaml:"generated_at"`
	Result      engine.TickResult `yaml:"result"`
}

// WriteTick writes one tick result as YAML and returns the file path.
// The write goes through a temp file and rename so readers never see a
// partial report.
func (w *Writer) WriteTick(result engine.TickResult, now time.Time) (string, error) {
	dir := filepath.Join(w.baseDir, now.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	report := Report{GeneratedAt: now.UTC(), Result: result}
	raw, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal tick report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("tick_%s.yaml", now.UTC().Format("150405")))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("write tick report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize tick report: %w", err)
	}

	log.Debug().Str("path", path).Int("actions", len(result.Actions)).Msg("tick report written")
	return path, nil
}

// Load reads a previously written report back.
func Load(path string) (Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read tick report: %w", err)
	}
	var report Report
	if err := yaml.Unmarshal(raw, &report); err != nil {
		return Report{}, fmt.Errorf("decode tick report %s: %w", path, err)
	}
	return report, nil
}
