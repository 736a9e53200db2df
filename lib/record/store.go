// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/changegate/changegate/lib/codec"
)

// fileExtension marks record files in the state directory.
const fileExtension = ".cgr"

// StateDirVariable overrides the default state directory location.
const StateDirVariable = "CHANGEGATE_STATE_DIR"

// DefaultDir resolves the state directory: CHANGEGATE_STATE_DIR if
// set, otherwise $XDG_STATE_HOME/changegate, otherwise
// ~/.local/state/changegate. The environment is read through environ
// (typically os.Getenv).
func DefaultDir(environ func(string) string) (string, error) {
	if dir := environ(StateDirVariable); dir != "" {
		return dir, nil
	}
	if xdg := environ("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "changegate"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving state directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "changegate"), nil
}

// Store reads and writes decision records in a directory, one file per
// record, named <id>.cgr.
type Store struct {
	dir string
}

// NewStore returns a Store over the given directory. The directory is
// created on first save, not here: read-only commands against a
// history that was never written should see an empty history, not a
// fresh directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the given record ID is (or would be) stored.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+fileExtension)
}

// Save writes the record to the store and returns the file path. The
// write is atomic: a temp file in the same directory, renamed into
// place. Records are immutable, so saving an already-present ID simply
// rewrites identical content.
func (s *Store) Save(record *Record) (string, error) {
	if err := Verify(record); err != nil {
		return "", err
	}

	payload, err := codec.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record %s: %w", record.ID, err)
	}
	frame, err := EncodeFrame(payload)
	if err != nil {
		return "", fmt.Errorf("framing record %s: %w", record.ID, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	temp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(frame); err != nil {
		temp.Close()
		os.Remove(tempName)
		return "", fmt.Errorf("writing record %s: %w", record.ID, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return "", fmt.Errorf("writing record %s: %w", record.ID, err)
	}

	path := s.Path(record.ID)
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return "", fmt.Errorf("placing record %s: %w", record.ID, err)
	}
	return path, nil
}

// Load reads and verifies one record by ID. The content hash must
// match the ID under which the record was stored.
func (s *Store) Load(id string) (*Record, error) {
	payload, err := s.RawPayload(id)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := codec.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	if record.ID != id {
		return nil, fmt.Errorf("record file %s contains ID %s", id, record.ID)
	}
	if err := Verify(&record); err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return &record, nil
}

// RawPayload reads one record's decompressed CBOR payload without
// decoding it. Used for diagnostic dumps.
func (s *Store) RawPayload(id string) ([]byte, error) {
	if err := ParseID(id); err != nil {
		return nil, err
	}
	frame, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return payload, nil
}

// List loads every record in the store, newest first (ties broken by
// ID). A store whose directory does not exist yet is an empty history.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExtension) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), fileExtension)
		record, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}
