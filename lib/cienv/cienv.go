// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package cienv detects what kind of build is running from the CI
// provider's environment variables: merge request or direct. The
// classifier only gates selectively on merge requests, so getting this
// bit right is what keeps direct builds (pushes to main, tags, nightly
// schedules) running the full suite.
//
// Detection recognizes Azure Pipelines, GitHub Actions, and GitLab CI.
// An explicit CHANGEGATE_MERGE_REQUEST=true|false overrides provider
// detection for other platforms, local runs, and tests. When nothing
// is recognized the build is treated as direct, which errs toward
// running everything.
//
// The environment is read through an injected lookup function
// (typically os.Getenv for production use, or a stub for testing) so
// detection stays a pure function of its inputs.
package cienv

import (
	"fmt"
	"strconv"
	"strings"
)

// Provider identifies the CI platform whose variables drove detection.
type Provider string

const (
	// ProviderAzure is Azure Pipelines (TF_BUILD).
	ProviderAzure Provider = "azure"

	// ProviderGitHub is GitHub Actions (GITHUB_ACTIONS).
	ProviderGitHub Provider = "github"

	// ProviderGitLab is GitLab CI (GITLAB_CI).
	ProviderGitLab Provider = "gitlab"

	// ProviderOverride means CHANGEGATE_MERGE_REQUEST decided,
	// regardless of any platform variables.
	ProviderOverride Provider = "override"

	// ProviderNone means no CI environment was recognized.
	ProviderNone Provider = "none"
)

// OverrideVariable forces the merge-request verdict independent of the
// CI platform. Accepts the forms strconv.ParseBool accepts.
const OverrideVariable = "CHANGEGATE_MERGE_REQUEST"

// Context is what detection learned about the running build.
type Context struct {
	// MergeRequest is true when the build was triggered by a merge
	// (pull) request.
	MergeRequest bool

	// Provider that produced the verdict.
	Provider Provider

	// BaseRef and HeadRef are the diff endpoints the provider
	// advertises for merge requests, normalized to plain branch
	// names. Either may be empty; the caller falls back to its own
	// --base/--head flags.
	BaseRef string
	HeadRef string

	// Reason is a one-line explanation of the verdict, for logs.
	Reason string
}

// Detect inspects the environment via environ and reports what kind of
// build this is. The only error case is a malformed
// CHANGEGATE_MERGE_REQUEST value: a present-but-broken override is a
// configuration bug that must not silently degrade into provider
// detection.
func Detect(environ func(string) string) (Context, error) {
	if raw := environ(OverrideVariable); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return Context{}, fmt.Errorf("%s=%q is not a boolean: %w", OverrideVariable, raw, err)
		}
		return Context{
			MergeRequest: value,
			Provider:     ProviderOverride,
			Reason:       fmt.Sprintf("%s=%s", OverrideVariable, raw),
		}, nil
	}

	if isTrue(environ("TF_BUILD")) {
		reason := environ("BUILD_REASON")
		return Context{
			MergeRequest: reason == "PullRequest",
			Provider:     ProviderAzure,
			BaseRef:      branchName(environ("SYSTEM_PULLREQUEST_TARGETBRANCH")),
			HeadRef:      branchName(environ("SYSTEM_PULLREQUEST_SOURCEBRANCH")),
			Reason:       fmt.Sprintf("azure: BUILD_REASON=%s", reason),
		}, nil
	}

	if isTrue(environ("GITHUB_ACTIONS")) {
		event := environ("GITHUB_EVENT_NAME")
		return Context{
			MergeRequest: event == "pull_request" || event == "pull_request_target",
			Provider:     ProviderGitHub,
			BaseRef:      environ("GITHUB_BASE_REF"),
			HeadRef:      environ("GITHUB_HEAD_REF"),
			Reason:       fmt.Sprintf("github: GITHUB_EVENT_NAME=%s", event),
		}, nil
	}

	if isTrue(environ("GITLAB_CI")) {
		source := environ("CI_PIPELINE_SOURCE")
		return Context{
			MergeRequest: source == "merge_request_event",
			Provider:     ProviderGitLab,
			BaseRef:      environ("CI_MERGE_REQUEST_TARGET_BRANCH_NAME"),
			HeadRef:      environ("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"),
			Reason:       fmt.Sprintf("gitlab: CI_PIPELINE_SOURCE=%s", source),
		}, nil
	}

	return Context{
		Provider: ProviderNone,
		Reason:   "no CI environment detected; treating as direct build",
	}, nil
}

// isTrue matches the truthy marker values CI platforms set: Azure uses
// "True", GitHub and GitLab use "true".
func isTrue(value string) bool {
	return strings.EqualFold(value, "true")
}

// branchName strips the refs/heads/ prefix Azure puts on branch
// variables. Other forms (refs/tags/..., bare names) pass through.
func branchName(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
