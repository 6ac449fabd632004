package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/skyflag/internal/artifact"
	"github.com/lucasnoah/skyflag/internal/view"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"run", "config", "rules", "report", "history", "db", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	for _, path := range [][]string{
		{"config", "validate"}, {"config", "show"},
		{"report", "summary"}, {"report", "heatmap"},
		{"history", "show"}, {"history", "rules"},
		{"db", "migrate"}, {"db", "reset"},
	} {
		out, err := executeCommand(append(path, "--help")...)
		if err != nil {
			t.Errorf("%v --help failed: %v", path, err)
		}
		if out == "" {
			t.Errorf("%v --help produced no output", path)
		}
	}
}

func TestRulesCommand(t *testing.T) {
	out, err := executeCommand("rules", "vector")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"edges", "sharps", "diffmad", "tmf"} {
		if !strings.Contains(out, name) {
			t.Errorf("vector rules missing %q:\n%s", name, out)
		}
	}
	if strings.Contains(out, "bad quadrant") {
		t.Errorf("vector rules list matrix-only rule:\n%s", out)
	}

	if _, err := executeCommand("rules", "cube"); err == nil {
		t.Error("expected error for unknown shape")
	}
}

// setupWorkspace writes an artifact holding one spectrum with a single
// outlier and a config with one vector stage for it.
func setupWorkspace(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()

	axis := view.Axis{Name: "Channels", Data: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}}
	v := view.NewVector(axis, []float64{5, 5, 5, 5, 50, 5, 5, 5, 5})
	v.Description = "spw0 spectrum"
	v.Spw = "0"
	a := &artifact.Artifact{Name: "obs.ms", Views: []*view.View{v}}
	artifactPath := filepath.Join(dir, "obs.json")
	if err := a.Save(artifactPath); err != nil {
		t.Fatalf("save artifact: %v", err)
	}

	cfg := fmt.Sprintf(`
flagging:
  name: test
  results_dir: %s
  log:
    level: error
    format: json
  store:
    driver: sqlite
    dsn: %s
  stages:
    - id: spectra
      artifact: %s
      shape: vector
      rules:
        - name: outlier
          limit: 3
          minsample: 3
`, filepath.Join(dir, "results"), filepath.Join(dir, "runs.db"), artifactPath)

	cfgPath = filepath.Join(dir, "skyflag.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dir
}

func TestConfigValidate(t *testing.T) {
	cfgPath, _ := setupWorkspace(t)
	out, err := executeCommand("-c", cfgPath, "config", "validate")
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunAndReport(t *testing.T) {
	cfgPath, dir := setupWorkspace(t)

	out, err := executeCommand("-c", cfgPath, "run", "spectra", "--format", "text")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, want := range []string{"converged after 2 iterations", "spw='0:4' reason='outlier'"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}

	a, err := artifact.Load(filepath.Join(dir, "obs.json"))
	if err != nil {
		t.Fatalf("reload artifact: %v", err)
	}
	if !a.Views[0].Flag[4] {
		t.Error("flag was not applied to the artifact")
	}

	out, err = executeCommand("-c", cfgPath, "history", "spectra", "--format", "text")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "spectra") || !strings.Contains(out, "converged") {
		t.Errorf("history output missing run:\n%s", out)
	}

	out, err = executeCommand("-c", cfgPath, "history", "rules", "spectra")
	if err != nil {
		t.Fatalf("history rules failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "outlier") {
		t.Errorf("rule counts missing outlier:\n%s", out)
	}

	out, err = executeCommand("-c", cfgPath, "report", "summary", "spectra")
	if err != nil {
		t.Fatalf("report summary failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "outlier (1)") {
		t.Errorf("summary missing reason group:\n%s", out)
	}

	plots := filepath.Join(dir, "plots")
	out, err = executeCommand("-c", cfgPath, "report", "heatmap", "spectra", "--out", plots)
	if err != nil {
		t.Fatalf("report heatmap failed: %v\n%s", err, out)
	}
	matches, _ := filepath.Glob(filepath.Join(plots, "*.png"))
	if len(matches) != 1 {
		t.Errorf("expected 1 heatmap, found %v", matches)
	}
}

func TestDBResetRequiresConfirmation(t *testing.T) {
	cfgPath, _ := setupWorkspace(t)
	if _, err := executeCommand("-c", cfgPath, "db", "reset"); err == nil {
		t.Error("expected reset without --yes to fail")
	}
}

func TestPlotFilename(t *testing.T) {
	got := plotFilename("0123456789abcdef", "spw 17/amp&phase")
	if got != "01234567-spw_17_amp_phase.png" {
		t.Errorf("plotFilename = %q", got)
	}
}
