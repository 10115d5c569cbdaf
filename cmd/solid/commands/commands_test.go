package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/solidgraph/pkg/policy"
	"github.com/openfroyo/solidgraph/pkg/stores"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "today")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestTreeCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.star", `
root = node("root")
root * leaf("a")
`)

	out, _, err := execute(t, "tree", path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out != "root\n  a\n" {
		t.Errorf("Unexpected tree output: %q", out)
	}

	out, _, err = execute(t, "tree", path, "--format", "dot")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("Expected a digraph, got: %q", out)
	}

	out, _, err = execute(t, "tree", path, "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var summary policy.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(summary.Nodes) != 2 || len(summary.Roots) != 1 {
		t.Errorf("Expected 2 nodes below 1 root, got %d nodes and %d roots", len(summary.Nodes), len(summary.Roots))
	}
}

func TestTreeCommand_Export(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.star", `
body = node("body")
bolt = node("bolt")
`)

	out, _, err := execute(t, "tree", path, "--export", "bolt")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out != "bolt\n" {
		t.Errorf("Unexpected tree output: %q", out)
	}

	_, _, err = execute(t, "tree", path, "--export", "nut")
	if err == nil || !strings.Contains(err.Error(), "body, bolt") {
		t.Errorf("Expected unknown export error listing exports, got: %v", err)
	}
}

func TestTreeCommand_ScriptError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.star", `
a = leaf("a")
a * node("b")
`)

	if _, _, err := execute(t, "tree", path); err == nil {
		t.Error("Expected extending a leaf to fail the run")
	}
}

func TestPlacementsCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.star", `
part = translate(1, 2, 3) * leaf("bolt")
`)

	out, _, err := execute(t, "placements", path, "--export", "part", "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var reports []placementReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(reports) != 1 || len(reports[0].Transforms) != 1 {
		t.Fatalf("Expected one front with one placement, got %+v", reports)
	}
	if reports[0].Label != "bolt" {
		t.Errorf("Expected front bolt, got %s", reports[0].Label)
	}
	rows := reports[0].Transforms[0]
	if rows[0][3] != 1 || rows[1][3] != 2 || rows[2][3] != 3 {
		t.Errorf("Expected offset (1, 2, 3), got %v", rows)
	}
}

func TestLintCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.star", `
node("a")
node("b")
`)

	out, _, err := execute(t, "lint", path)
	if err != nil {
		t.Fatalf("Expected warnings not to fail lint, got: %v", err)
	}
	if !strings.Contains(out, "stray-root") || !strings.Contains(out, "0 violations, 1 warnings") {
		t.Errorf("Expected a stray-root warning, got:\n%s", out)
	}

	if _, _, err := execute(t, "lint", path, "--fail-on-warning"); err == nil {
		t.Error("Expected --fail-on-warning to fail on the stray-root warning")
	}

	if _, _, err := execute(t, "lint", path, "--fail-on-warning", "--disable", "stray-root"); err != nil {
		t.Errorf("Expected disabled policy not to fail lint, got: %v", err)
	}
}

func TestLintCommand_MaxDepth(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deep.star", `
node("a") * node("b") * node("c") * leaf("d")
`)

	if _, _, err := execute(t, "lint", path, "--max-depth", "3"); err == nil {
		t.Error("Expected a scene of depth 4 to exceed --max-depth 3")
	}
	if _, _, err := execute(t, "lint", path, "--max-depth", "4"); err != nil {
		t.Errorf("Expected depth 4 to pass --max-depth 4, got: %v", err)
	}
}

func TestLintCommand_CustomPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.star", `
node("forbidden")
`)
	policyDir := filepath.Join(dir, "policies")
	if err := os.Mkdir(policyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, policyDir, "forbidden-name.rego", `# Rejects nodes named "forbidden".
# severity: critical
package solidgraph.policies.names

import rego.v1

deny contains violation if {
	some n in input.scene.nodes
	n.label == "forbidden"
	violation := {
		"message": "forbidden node name",
		"severity": "critical",
		"node": n.label,
	}
}
`)

	out, _, err := execute(t, "lint", path, "--policy", policyDir)
	if err == nil {
		t.Fatal("Expected the critical violation to fail lint")
	}
	if !strings.Contains(out, "forbidden-name") {
		t.Errorf("Expected forbidden-name in output, got:\n%s", out)
	}
}

func TestPoliciesCommand(t *testing.T) {
	out, _, err := execute(t, "policies", "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var list []policy.Policy
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(list) != len(policy.GetBuiltinPolicies()) {
		t.Errorf("Expected %d builtin policies, got %d", len(policy.GetBuiltinPolicies()), len(list))
	}
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "solid.yaml", "output:\n  format: dot\n")
	bad := writeFile(t, dir, "bad.yaml", "output:\n  format: svg\n")

	out, _, err := execute(t, "config", "validate", good)
	if err != nil {
		t.Fatalf("Expected valid configuration, got: %v", err)
	}
	if !strings.Contains(out, "configuration is valid") {
		t.Errorf("Unexpected output: %q", out)
	}

	if _, _, err := execute(t, "config", "validate", bad); err == nil {
		t.Error("Expected an invalid output format to be rejected")
	}

	out, _, err = execute(t, "--config", good, "config", "show")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "format: dot") {
		t.Errorf("Expected the configured format in output, got:\n%s", out)
	}

	out, _, err = execute(t, "config", "schema")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(out, "#Config") {
		t.Errorf("Expected the schema to define #Config, got:\n%s", out)
	}

	if _, _, err := execute(t, "config", "schema", "nope"); err == nil {
		t.Error("Expected an unknown schema name to fail")
	}
}

func TestConfiguredFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "solid.yaml", "output:\n  format: dot\n")
	path := writeFile(t, dir, "part.star", `node("a")`)

	out, _, err := execute(t, "--config", cfg, "tree", path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("Expected the configured dot format, got: %q", out)
	}
}

func TestLintHistory(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	path := writeFile(t, dir, "part.star", `
node("a")
node("b")
`)
	broken := writeFile(t, dir, "broken.star", `leaf("a") * node("b")`)

	for i := 0; i < 2; i++ {
		if _, _, err := execute(t, "lint", path, "--history", db); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	if _, _, err := execute(t, "lint", broken, "--history", db); err == nil {
		t.Fatal("Expected the broken script to fail")
	}

	out, _, err := execute(t, "history", "--history", db, "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var runs []stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 recorded runs, got %d", len(runs))
	}

	statuses := map[stores.RunStatus]int{}
	for _, r := range runs {
		statuses[r.Status]++
	}
	if statuses[stores.RunStatusPassed] != 2 || statuses[stores.RunStatusError] != 1 {
		t.Errorf("Unexpected run statuses: %v", statuses)
	}

	out, _, err = execute(t, "history", path, "--history", db, "--stats", "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var counts []stores.PolicyCount
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(counts) != 1 || counts[0] != (stores.PolicyCount{Policy: "stray-root", Count: 2}) {
		t.Errorf("Unexpected finding counts: %+v", counts)
	}

	if _, _, err := execute(t, "history"); err == nil {
		t.Error("Expected history without a database to fail")
	}
}

func TestLintCommand_Batch(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.star", `node("a") * leaf("b")`)
	deep := writeFile(t, dir, "deep.star", `node("a") * node("b") * node("c") * leaf("d")`)

	out, _, err := execute(t, "lint", good, deep, "--max-depth", "3", "--parallel", "2")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 scripts failed") {
		t.Fatalf("Expected one failing script, got: %v", err)
	}
	goodAt := strings.Index(out, good+":")
	deepAt := strings.Index(out, deep+":")
	if goodAt < 0 || deepAt < goodAt {
		t.Errorf("Expected reports in argument order, got:\n%s", out)
	}
	if !strings.Contains(out[deepAt:], "max-depth") {
		t.Errorf("Expected a max-depth violation for %s, got:\n%s", deep, out)
	}

	out, _, err = execute(t, "lint", good, good, "--json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	var reports []lintReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(reports) != 2 || reports[0].Result == nil || !reports[0].Result.Allowed {
		t.Errorf("Unexpected reports: %+v", reports)
	}
}
