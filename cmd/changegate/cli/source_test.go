// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/changegate/changegate/lib/cienv"
)

// clearCIEnv blanks every variable detection reads, so tests see the
// same verdict no matter what CI system they themselves run under.
func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CHANGEGATE_MERGE_REQUEST", "TF_BUILD", "GITHUB_ACTIONS", "GITLAB_CI"} {
		t.Setenv(key, "")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSourceResolve_PositionalPaths(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{Direct: true}
	source, err := config.Resolve(t.Context(), []string{"doc/index.rst", "src/solver.py"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(source.Files) != 2 || source.Files[0] != "doc/index.rst" || source.Files[1] != "src/solver.py" {
		t.Errorf("Files = %v, want the positional paths", source.Files)
	}
	if source.Base != "" || source.Head != "" {
		t.Errorf("Base/Head = %q/%q, want empty for positional paths", source.Base, source.Head)
	}
	if source.Ruleset.Name() != "default" {
		t.Errorf("Ruleset.Name() = %q, want %q", source.Ruleset.Name(), "default")
	}
}

func TestSourceResolve_DiffFile(t *testing.T) {
	clearCIEnv(t)

	path := filepath.Join(t.TempDir(), "changed.txt")
	content := "doc/index.rst\n\n  notebooks/demo.ipynb  \nsrc/solver.py\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config := SourceConfig{DiffFile: path, MergeRequest: true}
	source, err := config.Resolve(t.Context(), nil, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := []string{"doc/index.rst", "notebooks/demo.ipynb", "src/solver.py"}
	if len(source.Files) != len(want) {
		t.Fatalf("Files = %v, want %v", source.Files, want)
	}
	for index, wantPath := range want {
		if source.Files[index] != wantPath {
			t.Errorf("Files[%d] = %q, want %q", index, source.Files[index], wantPath)
		}
	}
}

func TestSourceResolve_ConflictingSources(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{DiffFile: "changed.txt", Direct: true}
	_, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err == nil {
		t.Fatal("Resolve() = nil, want error for conflicting sources")
	}
	if !strings.Contains(err.Error(), "only one of") {
		t.Errorf("error = %q, want conflicting-sources message", err.Error())
	}
}

func TestSourceResolve_MergeRequestAndDirectConflict(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{MergeRequest: true, Direct: true}
	_, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err == nil {
		t.Fatal("Resolve() = nil, want error for conflicting overrides")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("error = %q, want mutual-exclusion message", err.Error())
	}
}

func TestSourceResolve_OverrideFlagsSetVerdict(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{MergeRequest: true}
	source, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !source.Env.MergeRequest {
		t.Error("Env.MergeRequest = false, want true under --merge-request")
	}
	if source.Env.Reason != "forced by --merge-request" {
		t.Errorf("Env.Reason = %q, want forced reason", source.Env.Reason)
	}

	config = SourceConfig{Direct: true}
	source, err = config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if source.Env.MergeRequest {
		t.Error("Env.MergeRequest = true, want false under --direct")
	}
}

func TestSourceResolve_EnvFileOverlay(t *testing.T) {
	clearCIEnv(t)
	// The overlay must shadow the process environment, not merely
	// fill gaps.
	t.Setenv("CHANGEGATE_MERGE_REQUEST", "false")

	path := filepath.Join(t.TempDir(), "ci.env")
	content := "CHANGEGATE_MERGE_REQUEST=true\nGITHUB_OUTPUT=/tmp/out\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config := SourceConfig{EnvFile: path}
	source, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !source.Env.MergeRequest {
		t.Error("Env.MergeRequest = false, want true from the env file")
	}
	if source.Env.Provider != cienv.ProviderOverride {
		t.Errorf("Env.Provider = %q, want %q", source.Env.Provider, cienv.ProviderOverride)
	}
	if got := source.Environ("GITHUB_OUTPUT"); got != "/tmp/out" {
		t.Errorf("Environ(GITHUB_OUTPUT) = %q, want %q", got, "/tmp/out")
	}
}

func TestSourceResolve_EnvFileMissing(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{EnvFile: filepath.Join(t.TempDir(), "absent.env")}
	_, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err == nil {
		t.Fatal("Resolve() = nil, want error for missing env file")
	}
}

func TestSourceResolve_DirectBuildWithoutBase(t *testing.T) {
	clearCIEnv(t)

	// No paths, no stdin, no diff file, no base: a direct build has
	// nothing to diff against and classifies an empty set.
	config := SourceConfig{}
	source, err := config.Resolve(t.Context(), nil, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(source.Files) != 0 {
		t.Errorf("Files = %v, want empty", source.Files)
	}
	if source.Base != "" || source.Head != "" {
		t.Errorf("Base/Head = %q/%q, want empty", source.Base, source.Head)
	}

	breakdown := source.Evaluate()
	if !breakdown.Result.BuildDocs || !breakdown.Result.BuildNotebooks || !breakdown.Result.TestCode {
		t.Errorf("direct build signals = %+v, want all true", breakdown.Result)
	}
}

func TestSourceResolve_MergeRequestWithoutBase(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{MergeRequest: true}
	_, err := config.Resolve(t.Context(), nil, testLogger())
	if err == nil {
		t.Fatal("Resolve() = nil, want error for merge request without a base")
	}
	if !strings.Contains(err.Error(), "--base") {
		t.Errorf("error = %q, should point at --base", err.Error())
	}
}

func TestSourceResolve_RulesFile(t *testing.T) {
	clearCIEnv(t)

	path := filepath.Join(t.TempDir(), "rules.jsonc")
	content := `{
  // vendored code never gates anything
  "version": 1,
  "name": "custom",
  "rules": [
    {"pattern": "vendor/*", "category": "ignore"},
    {"pattern": "doc/*", "category": "docs"},
  ],
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config := SourceConfig{Rules: path, MergeRequest: true}
	source, err := config.Resolve(t.Context(), []string{"vendor/lib.py", "doc/a.rst"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if source.Ruleset.Name() != "custom" {
		t.Errorf("Ruleset.Name() = %q, want %q", source.Ruleset.Name(), "custom")
	}

	breakdown := source.Evaluate()
	if breakdown.Result.TestCode {
		t.Error("TestCode = true, want false (vendor ignored, doc matched)")
	}
	if !breakdown.Result.BuildDocs {
		t.Error("BuildDocs = false, want true")
	}
}

func TestSourceBuildContext(t *testing.T) {
	clearCIEnv(t)

	config := SourceConfig{MergeRequest: true}
	source, err := config.Resolve(t.Context(), []string{"src/a.py"}, testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	build := source.BuildContext()
	if !build.MergeRequest {
		t.Error("BuildContext.MergeRequest = false, want true")
	}
	if build.Reason != "forced by --merge-request" {
		t.Errorf("BuildContext.Reason = %q, want forced reason", build.Reason)
	}
}
