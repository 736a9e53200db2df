// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package record persists classification decisions. A record captures
// everything needed to reconstruct why the gates fired the way they
// did: the build context, the ruleset (by name and content
// fingerprint), the per-file attribution, and the resulting signals.
//
// Records are identified by a content-derived ID ("dec-" plus 16 hex
// characters of the decision-domain BLAKE3 hash), encoded as
// deterministic CBOR, framed with a compression tag and length, and
// written to one file per decision under the state directory.
// Recording is opt-in: classification itself never touches the
// filesystem.
package record

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/zeebo/blake3"

	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/clock"
	"github.com/changegate/changegate/lib/codec"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// hashes in different contexts. The byte values are the ASCII encoding
// of the domain name, zero-padded to 32 bytes, so the keys are
// inspectable in hex dumps without sacrificing any cryptographic
// property.
type domainKey [32]byte

var (
	decisionDomainKey = domainKey{
		'c', 'h', 'a', 'n', 'g', 'e', 'g', 'a', 't', 'e', '.',
		'd', 'e', 'c', 'i', 's', 'i', 'o', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	rulesetDomainKey = domainKey{
		'c', 'h', 'a', 'n', 'g', 'e', 'g', 'a', 't', 'e', '.',
		'r', 'u', 'l', 'e', 's', 'e', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// keyedHash computes the BLAKE3 keyed hash of data under the given
// domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails for wrong key length, which domainKey's
	// fixed size rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("record: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// FormatHash returns the hex-encoded string representation of a hash.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// RulesetHash computes the ruleset-domain hash of a rule table. The
// hash covers patterns and categories in evaluation order but not the
// ruleset's label: the same table loaded from different paths
// fingerprints identically.
func RulesetHash(ruleset *classify.Ruleset) Hash {
	type entry struct {
		Pattern  string `cbor:"pattern"`
		Category string `cbor:"category"`
	}
	rules := ruleset.Rules()
	entries := make([]entry, len(rules))
	for index, rule := range rules {
		entries[index] = entry{Pattern: rule.Pattern, Category: string(rule.Category)}
	}
	data, err := codec.Marshal(entries)
	if err != nil {
		// Two strings per entry cannot fail deterministic encoding.
		panic("record: encoding ruleset for hashing failed: " + err.Error())
	}
	return keyedHash(rulesetDomainKey, data)
}

// idPattern matches well-formed record IDs.
var idPattern = regexp.MustCompile(`^dec-[0-9a-f]{16}$`)

// FormatID returns the record ID for a decision-domain hash: the
// "dec-" prefix followed by the first 16 hex characters.
func FormatID(hash Hash) string {
	return "dec-" + hex.EncodeToString(hash[:8])
}

// ParseID checks that id is a well-formed record ID.
func ParseID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("malformed record ID %q (want dec- followed by 16 hex characters)", id)
	}
	return nil
}

// FileRecord is the classification of one changed path.
type FileRecord struct {
	Path     string `json:"path"`
	Category string `json:"category"`

	// Rule is the pattern of the deciding rule, empty when no rule
	// matched and the path fell through to the code default.
	Rule string `json:"rule,omitempty"`
}

// BuildContext carries the build-level facts a record preserves
// alongside the classification itself.
type BuildContext struct {
	// MergeRequest is the verdict classification ran under.
	MergeRequest bool

	// Provider and Reason describe how the verdict was reached,
	// as reported by lib/cienv.
	Provider string
	Reason   string

	// BaseRef and HeadRef are the diff endpoints, when known.
	BaseRef string
	HeadRef string
}

// Record is one persisted classification decision.
type Record struct {
	// ID is derived from the record content; see New.
	ID string `json:"id"`

	// CreatedAt is when the decision was made, UTC, second
	// precision.
	CreatedAt time.Time `json:"created_at"`

	MergeRequest bool   `json:"merge_request"`
	Provider     string `json:"provider,omitempty"`
	Reason       string `json:"reason,omitempty"`
	BaseRef      string `json:"base_ref,omitempty"`
	HeadRef      string `json:"head_ref,omitempty"`

	// Ruleset is the label of the table that classified the files;
	// RulesetDigest is the hex ruleset-domain hash of its content.
	Ruleset       string `json:"ruleset"`
	RulesetDigest string `json:"ruleset_digest"`

	// Files is the per-path attribution, in input order.
	Files []FileRecord `json:"files"`

	// Counts tallies files per category. Categories with no files
	// are absent.
	Counts map[string]int `json:"counts"`

	BuildDocs      bool `json:"build_docs"`
	BuildNotebooks bool `json:"build_notebooks"`
	TestCode       bool `json:"test_code"`
}

// New builds a record from a classification and stamps it with a
// content-derived ID. The clock supplies CreatedAt; tests inject a
// fake for reproducible fingerprints.
func New(clk clock.Clock, ruleset *classify.Ruleset, breakdown classify.Breakdown, build BuildContext) (*Record, error) {
	record := &Record{
		CreatedAt:      clk.Now().UTC().Truncate(time.Second),
		MergeRequest:   build.MergeRequest,
		Provider:       build.Provider,
		Reason:         build.Reason,
		BaseRef:        build.BaseRef,
		HeadRef:        build.HeadRef,
		Ruleset:        ruleset.Name(),
		RulesetDigest:  FormatHash(RulesetHash(ruleset)),
		Files:          make([]FileRecord, 0, len(breakdown.Matches)),
		Counts:         make(map[string]int, len(breakdown.Counts)),
		BuildDocs:      breakdown.Result.BuildDocs,
		BuildNotebooks: breakdown.Result.BuildNotebooks,
		TestCode:       breakdown.Result.TestCode,
	}
	rules := ruleset.Rules()
	for _, match := range breakdown.Matches {
		file := FileRecord{Path: match.Path, Category: string(match.Category)}
		if match.Rule >= 0 && match.Rule < len(rules) {
			file.Rule = rules[match.Rule].Pattern
		}
		record.Files = append(record.Files, file)
	}
	for category, count := range breakdown.Counts {
		record.Counts[string(category)] = count
	}

	hash, err := DecisionHash(record)
	if err != nil {
		return nil, err
	}
	record.ID = FormatID(hash)
	return record, nil
}

// DecisionHash computes the decision-domain hash of a record's
// content. The ID field is excluded, since it is derived from this
// hash.
func DecisionHash(record *Record) (Hash, error) {
	content := *record
	content.ID = ""
	data, err := codec.Marshal(&content)
	if err != nil {
		return Hash{}, fmt.Errorf("encoding record for hashing: %w", err)
	}
	return keyedHash(decisionDomainKey, data), nil
}

// Verify checks that the record's ID matches its content.
func Verify(record *Record) error {
	if err := ParseID(record.ID); err != nil {
		return err
	}
	hash, err := DecisionHash(record)
	if err != nil {
		return err
	}
	if want := FormatID(hash); record.ID != want {
		return fmt.Errorf("record ID %s does not match content (want %s)", record.ID, want)
	}
	return nil
}

// Result reconstructs the gate signals the record captured.
func (r *Record) Result() classify.Result {
	return classify.Result{
		BuildDocs:      r.BuildDocs,
		BuildNotebooks: r.BuildNotebooks,
		TestCode:       r.TestCode,
	}
}
