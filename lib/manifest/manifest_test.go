// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleManifest = `version: 1
name: sample-ci
jobs:
  - name: docs
    description: build the documentation site
    condition: buildDocs
  - name: notebooks
    condition: buildNotebooks
  - name: lint
    condition: testCode
  - name: test
    condition: testCode
    matrix:
      - {os: linux, python: "3.9"}
      - {os: linux, python: "3.12"}
      - {os: windows, python: "3.12"}
  - name: publish
    needs: [docs, notebooks]
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if m.Version != 1 || m.Name != "sample-ci" {
		t.Errorf("header = version %d name %q, want 1 / sample-ci", m.Version, m.Name)
	}
	if len(m.Jobs) != 5 {
		t.Fatalf("parsed %d jobs, want 5", len(m.Jobs))
	}

	test, ok := m.Job("test")
	if !ok {
		t.Fatal("Job(test) not found")
	}
	if len(test.Matrix) != 3 {
		t.Errorf("test job has %d matrix cells, want 3", len(test.Matrix))
	}
	if test.Matrix[0]["python"] != "3.9" {
		t.Errorf("matrix[0].python = %q, want 3.9", test.Matrix[0]["python"])
	}

	publish, _ := m.Job("publish")
	if len(publish.Needs) != 2 || publish.Needs[0] != "docs" {
		t.Errorf("publish.Needs = %v, want [docs notebooks]", publish.Needs)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("version: 1\njobs:\n  - name: docs\n    conditon: buildDocs\n"))
	if err == nil {
		t.Fatal("Parse() accepted a typoed field name")
	}
	if !strings.Contains(err.Error(), "conditon") {
		t.Errorf("error %q does not name the unknown field", err)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "changegate.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	m, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if len(m.Jobs) != 5 {
		t.Errorf("read %d jobs, want 5", len(m.Jobs))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("ReadFile() succeeded on a missing file")
	}
}

func TestExampleManifest(t *testing.T) {
	t.Parallel()

	m, err := ReadFile(filepath.Join("testdata", "changegate.yaml"))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Fatalf("example manifest has issues: %v", issues)
	}

	if len(m.Jobs) != 5 {
		t.Errorf("example declares %d jobs, want 5", len(m.Jobs))
	}
	for _, name := range []string{"docs", "notebooks", "lint", "test"} {
		job, ok := m.Job(name)
		if !ok {
			t.Errorf("Job(%s) not found", name)
			continue
		}
		if len(job.Needs) != 1 || job.Needs[0] != "analyze" {
			t.Errorf("%s.Needs = %v, want [analyze]", name, job.Needs)
		}
		if job.Condition == "" {
			t.Errorf("%s has no condition", name)
		}
	}

	test, _ := m.Job("test")
	if len(test.Matrix) != 4 {
		t.Errorf("test job has %d matrix cells, want 4", len(test.Matrix))
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest Manifest
		want     []string
	}{
		{
			name: "valid manifest",
			manifest: Manifest{
				Version: 1,
				Jobs: []Job{
					{Name: "docs", Condition: "buildDocs"},
					{Name: "publish", Needs: []string{"docs"}},
				},
			},
		},
		{
			name:     "wrong version and no jobs",
			manifest: Manifest{Version: 2},
			want:     []string{"version must be 1 (got 2)", "declares no jobs"},
		},
		{
			name: "missing job name",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Condition: "testCode"}},
			},
			want: []string{"jobs[0] missing name"},
		},
		{
			name: "bad job name",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "run tests"}},
			},
			want: []string{`jobs[0] "run tests": name may contain only`},
		},
		{
			name: "duplicate job name",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "docs"}, {Name: "docs"}},
			},
			want: []string{`jobs[1] "docs": duplicate job name`},
		},
		{
			name: "unknown dependency",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "publish", Needs: []string{"docs"}}},
			},
			want: []string{`jobs[0] "publish": needs unknown job "docs"`},
		},
		{
			name: "self dependency",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "docs", Needs: []string{"docs"}}},
			},
			want: []string{`jobs[0] "docs": needs itself`},
		},
		{
			name: "duplicate dependency",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "docs"}, {Name: "publish", Needs: []string{"docs", "docs"}}},
			},
			want: []string{`jobs[1] "publish": needs "docs" twice`},
		},
		{
			name: "dependency cycle",
			manifest: Manifest{
				Version: 1,
				Jobs: []Job{
					{Name: "a", Needs: []string{"c"}},
					{Name: "b", Needs: []string{"a"}},
					{Name: "c", Needs: []string{"b"}},
				},
			},
			want: []string{"dependency cycle involving: a, b, c"},
		},
		{
			name: "empty matrix cell",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "test", Matrix: []map[string]string{{}}}},
			},
			want: []string{`jobs[0] "test": matrix[0] is empty`},
		},
		{
			name: "inconsistent matrix keys",
			manifest: Manifest{
				Version: 1,
				Jobs: []Job{{
					Name: "test",
					Matrix: []map[string]string{
						{"os": "linux", "python": "3.12"},
						{"os": "windows"},
					},
				}},
			},
			want: []string{`matrix[1] keys [os] differ from matrix[0] keys [os python]`},
		},
		{
			name: "empty matrix value",
			manifest: Manifest{
				Version: 1,
				Jobs:    []Job{{Name: "test", Matrix: []map[string]string{{"os": ""}}}},
			},
			want: []string{`matrix[0] key "os" has an empty value`},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			issues := test.manifest.Validate()
			if len(test.want) == 0 {
				if len(issues) != 0 {
					t.Fatalf("Validate() = %v, want no issues", issues)
				}
				return
			}
			for _, want := range test.want {
				found := false
				for _, issue := range issues {
					if strings.Contains(issue, want) {
						found = true
					}
				}
				if !found {
					t.Errorf("Validate() = %v, want an issue containing %q", issues, want)
				}
			}
		})
	}
}

func TestValidateCycleDoesNotFlagDiamond(t *testing.T) {
	t.Parallel()

	// A diamond (two paths to the same dependency) is not a cycle.
	m := Manifest{
		Version: 1,
		Jobs: []Job{
			{Name: "classify"},
			{Name: "docs", Needs: []string{"classify"}},
			{Name: "test", Needs: []string{"classify"}},
			{Name: "publish", Needs: []string{"docs", "test"}},
		},
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Errorf("Validate() flagged a diamond dependency graph: %v", issues)
	}
}
