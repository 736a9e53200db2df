// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/changegate/changegate/cmd/changegate/cli"
	"github.com/changegate/changegate/lib/cienv"
	"github.com/changegate/changegate/lib/emit"
	"github.com/changegate/changegate/lib/record"
)

// clearCIEnv blanks every variable the commands read from the
// environment, so tests behave the same on a developer machine and
// inside a CI job.
func clearCIEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CHANGEGATE_MERGE_REQUEST", "TF_BUILD", "GITHUB_ACTIONS", "GITLAB_CI",
		"GITHUB_OUTPUT", "GITHUB_STEP_SUMMARY", "CHANGEGATE_STATE_DIR",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resolveSource(t *testing.T, config cli.SourceConfig, paths []string) *cli.Source {
	t.Helper()
	source, err := config.Resolve(t.Context(), paths, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return source
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		provider cienv.Provider
		want     emit.Format
		wantErr  bool
	}{
		{name: "explicit json", flag: "json", provider: cienv.ProviderAzure, want: emit.FormatJSON},
		{name: "explicit azure", flag: "azure", provider: cienv.ProviderNone, want: emit.FormatAzure},
		{name: "azure provider default", provider: cienv.ProviderAzure, want: emit.FormatAzure},
		{name: "github provider default", provider: cienv.ProviderGitHub, want: emit.FormatGitHub},
		{name: "gitlab falls back to env", provider: cienv.ProviderGitLab, want: emit.FormatEnv},
		{name: "no provider falls back to env", provider: cienv.ProviderNone, want: emit.FormatEnv},
		{name: "unknown format", flag: "yaml", provider: cienv.ProviderNone, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			format, err := resolveFormat(test.flag, test.provider)
			if test.wantErr {
				if err == nil {
					t.Fatalf("resolveFormat(%q) = %q, want error", test.flag, format)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveFormat(%q): %v", test.flag, err)
			}
			if format != test.want {
				t.Errorf("resolveFormat(%q, %q) = %q, want %q", test.flag, test.provider, format, test.want)
			}
		})
	}
}

func TestWriteExplanation_MergeRequest(t *testing.T) {
	clearCIEnv(t)

	source := resolveSource(t, cli.SourceConfig{MergeRequest: true},
		[]string{"doc/index.rst", "src/solver.py", "README.md"})
	breakdown := source.Evaluate()

	var buffer bytes.Buffer
	writeExplanation(&buffer, source, breakdown)
	output := buffer.String()

	if !strings.Contains(output, "forced by --merge-request") {
		t.Errorf("output missing the verdict reason:\n%s", output)
	}
	if strings.Contains(output, "forced on") {
		t.Errorf("merge-request output carries the direct-build note:\n%s", output)
	}
	for _, want := range []string{"PATH", "doc/index.rst", "docs", "doc/*", "src/solver.py", "(default)", "README.md", "ignore"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestWriteExplanation_DirectBuild(t *testing.T) {
	clearCIEnv(t)

	source := resolveSource(t, cli.SourceConfig{Direct: true}, []string{"doc/index.rst"})
	breakdown := source.Evaluate()

	var buffer bytes.Buffer
	writeExplanation(&buffer, source, breakdown)

	if !strings.Contains(buffer.String(), "every signal is forced on") {
		t.Errorf("direct-build output missing the forced-on note:\n%s", buffer.String())
	}
}

func TestWriteExplanation_NoFiles(t *testing.T) {
	clearCIEnv(t)

	source := resolveSource(t, cli.SourceConfig{Direct: true}, nil)
	breakdown := source.Evaluate()

	var buffer bytes.Buffer
	writeExplanation(&buffer, source, breakdown)

	if !strings.Contains(buffer.String(), "no changed files") {
		t.Errorf("output missing the empty-changeset note:\n%s", buffer.String())
	}
}

func TestEmitResult_EnvFormatToFile(t *testing.T) {
	clearCIEnv(t)

	outputPath := filepath.Join(t.TempDir(), "signals.env")
	params := &classifyParams{Format: "env", Output: outputPath}
	source := resolveSource(t, cli.SourceConfig{MergeRequest: true}, []string{"doc/index.rst"})

	if err := emitResult(params, source, source.Evaluate().Result); err != nil {
		t.Fatalf("emitResult: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"CHANGEGATE_BUILD_DOCS=true",
		"CHANGEGATE_BUILD_NOTEBOOKS=false",
		"CHANGEGATE_TEST_CODE=false",
	} {
		if !strings.Contains(string(content), want) {
			t.Errorf("output file missing %q:\n%s", want, content)
		}
	}
}

func TestEmitResult_GitHubOutputSink(t *testing.T) {
	clearCIEnv(t)

	sink := filepath.Join(t.TempDir(), "github_output")
	envFile := filepath.Join(t.TempDir(), "ci.env")
	content := "CHANGEGATE_MERGE_REQUEST=true\nGITHUB_OUTPUT=" + sink + "\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	params := &classifyParams{Format: "github"}
	source := resolveSource(t, cli.SourceConfig{EnvFile: envFile}, []string{"notebooks/demo.ipynb"})

	if err := emitResult(params, source, source.Evaluate().Result); err != nil {
		t.Fatalf("emitResult: %v", err)
	}

	written, err := os.ReadFile(sink)
	if err != nil {
		t.Fatalf("GITHUB_OUTPUT sink was not written: %v", err)
	}
	if !strings.Contains(string(written), "buildNotebooks=true") {
		t.Errorf("sink missing buildNotebooks line:\n%s", written)
	}
	if !strings.Contains(string(written), "testCode=false") {
		t.Errorf("sink missing testCode line:\n%s", written)
	}
}

func TestRunClassify_RecordAndSummary(t *testing.T) {
	clearCIEnv(t)

	stateDir := filepath.Join(t.TempDir(), "state")
	summaryPath := filepath.Join(t.TempDir(), "summary.md")
	outputPath := filepath.Join(t.TempDir(), "signals.env")

	params := &classifyParams{
		SourceConfig: cli.SourceConfig{MergeRequest: true},
		Format:       "env",
		Output:       outputPath,
		SummaryPath:  summaryPath,
		Record:       true,
		StateDir:     stateDir,
	}

	err := runClassify(t.Context(), []string{"doc/index.rst", "src/solver.py"}, testLogger(), params)
	if err != nil {
		t.Fatalf("runClassify: %v", err)
	}

	records, err := record.NewStore(stateDir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("store has %d records, want 1", len(records))
	}
	rec := records[0]
	if !rec.MergeRequest {
		t.Error("record.MergeRequest = false, want true")
	}
	if !rec.BuildDocs || !rec.TestCode {
		t.Errorf("record signals = docs:%t code:%t, want both true", rec.BuildDocs, rec.TestCode)
	}

	markdown, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("summary was not written: %v", err)
	}
	if !strings.Contains(string(markdown), "# Change classification") {
		t.Errorf("summary missing the report heading:\n%s", markdown)
	}
	if !strings.Contains(string(markdown), rec.ID) {
		t.Errorf("summary missing the decision ID %s:\n%s", rec.ID, markdown)
	}

	signals, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(signals), "CHANGEGATE_TEST_CODE=true") {
		t.Errorf("signal output missing testCode line:\n%s", signals)
	}
}

func TestRunClassify_NoSinksLeavesNoRecord(t *testing.T) {
	clearCIEnv(t)

	stateDir := filepath.Join(t.TempDir(), "state")
	t.Setenv(record.StateDirVariable, stateDir)

	params := &classifyParams{
		SourceConfig: cli.SourceConfig{MergeRequest: true},
		Format:       "env",
		Output:       filepath.Join(t.TempDir(), "signals.env"),
	}

	if err := runClassify(t.Context(), []string{"doc/index.rst"}, testLogger(), params); err != nil {
		t.Fatalf("runClassify: %v", err)
	}

	records, err := record.NewStore(stateDir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("store has %d records, want none without --record", len(records))
	}
}

func TestRunCheck_SignalOff(t *testing.T) {
	clearCIEnv(t)

	diffFile := filepath.Join(t.TempDir(), "changed.txt")
	if err := os.WriteFile(diffFile, []byte("doc/index.rst\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	params := &checkParams{
		SourceConfig: cli.SourceConfig{DiffFile: diffFile, MergeRequest: true},
		Quiet:        true,
	}

	err := runCheck(t.Context(), []string{"testCode"}, testLogger(), params)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("runCheck: %v, want *cli.ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
}

func TestRunCheck_SignalOn(t *testing.T) {
	clearCIEnv(t)

	diffFile := filepath.Join(t.TempDir(), "changed.txt")
	if err := os.WriteFile(diffFile, []byte("doc/index.rst\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	params := &checkParams{
		SourceConfig: cli.SourceConfig{DiffFile: diffFile, MergeRequest: true},
		Quiet:        true,
	}

	if err := runCheck(t.Context(), []string{"buildDocs"}, testLogger(), params); err != nil {
		t.Errorf("runCheck: %v, want nil for an on signal", err)
	}
}

func TestRunCheck_UsageErrors(t *testing.T) {
	clearCIEnv(t)

	params := &checkParams{Quiet: true}

	err := runCheck(t.Context(), nil, testLogger(), params)
	if err == nil || !strings.Contains(err.Error(), "signal name") {
		t.Errorf("no-args error = %v, want signal-name usage error", err)
	}

	params = &checkParams{
		SourceConfig: cli.SourceConfig{Direct: true},
		Quiet:        true,
	}
	err = runCheck(t.Context(), []string{"deployProd"}, testLogger(), params)
	if err == nil || !strings.Contains(err.Error(), "unknown signal") {
		t.Errorf("unknown-signal error = %v, want unknown signal error", err)
	}
}
