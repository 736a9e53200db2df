// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package emit publishes gate signals to CI platforms. Each platform
// has its own convention for turning a process's output into variables
// later jobs can condition on; this package knows those conventions so
// nothing else has to.
//
// Formats:
//
//   - azure: ##vso[task.setvariable ...] logging commands on stdout.
//     Values are "True"/"False" because Azure conditions compare
//     variables as strings, conventionally against 'True'.
//   - github: "name=value" lines in the $GITHUB_OUTPUT file format.
//   - env: "CHANGEGATE_*=value" lines, suitable for eval or for
//     appending to an environment file.
//   - json: a single JSON object with the three signals, for scripted
//     consumers.
//
// All writers emit the signals in canonical order (buildDocs,
// buildNotebooks, testCode) so output is byte-stable for a given
// result.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/changegate/changegate/lib/classify"
)

// Format selects how gate signals are serialized.
type Format string

const (
	FormatAzure  Format = "azure"
	FormatGitHub Format = "github"
	FormatEnv    Format = "env"
	FormatJSON   Format = "json"
)

// Formats lists every supported format in a stable order.
var Formats = []Format{FormatAzure, FormatGitHub, FormatEnv, FormatJSON}

// ParseFormat converts a string, typically a flag value, into a
// Format.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatAzure, FormatGitHub, FormatEnv, FormatJSON:
		return Format(value), nil
	}
	names := make([]string, len(Formats))
	for index, format := range Formats {
		names[index] = string(format)
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", value, strings.Join(names, ", "))
}

// envNames maps signal names to the environment variable names the env
// format publishes. The mapping is a fixed table, not a case
// conversion, so the published names can never drift from what
// downstream scripts grep for.
var envNames = map[string]string{
	classify.SignalBuildDocs:      "CHANGEGATE_BUILD_DOCS",
	classify.SignalBuildNotebooks: "CHANGEGATE_BUILD_NOTEBOOKS",
	classify.SignalTestCode:       "CHANGEGATE_TEST_CODE",
}

// Write serializes the result to w in the given format.
func Write(w io.Writer, format Format, result classify.Result) error {
	switch format {
	case FormatAzure:
		return writeAzure(w, result)
	case FormatGitHub:
		return writeGitHub(w, result)
	case FormatEnv:
		return writeEnv(w, result)
	case FormatJSON:
		return writeJSON(w, result)
	}
	return fmt.Errorf("unknown emit format %q", format)
}

func writeAzure(w io.Writer, result classify.Result) error {
	for _, signal := range classify.SignalNames {
		value, err := result.Signal(signal)
		if err != nil {
			return err
		}
		// isOutput=true makes the variable visible to later jobs via
		// dependencies.<job>.outputs, not just later steps.
		text := "False"
		if value {
			text = "True"
		}
		if _, err := fmt.Fprintf(w, "##vso[task.setvariable variable=%s;isOutput=true]%s\n", signal, text); err != nil {
			return err
		}
	}
	return nil
}

func writeGitHub(w io.Writer, result classify.Result) error {
	for _, signal := range classify.SignalNames {
		value, err := result.Signal(signal)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s=%t\n", signal, value); err != nil {
			return err
		}
	}
	return nil
}

func writeEnv(w io.Writer, result classify.Result) error {
	for _, signal := range classify.SignalNames {
		value, err := result.Signal(signal)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s=%t\n", envNames[signal], value); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, result classify.Result) error {
	report := struct {
		BuildDocs      bool `json:"buildDocs"`
		BuildNotebooks bool `json:"buildNotebooks"`
		TestCode       bool `json:"testCode"`
	}{
		BuildDocs:      result.BuildDocs,
		BuildNotebooks: result.BuildNotebooks,
		TestCode:       result.TestCode,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}
