// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
)

// JSONOutput adds a --json flag to any params struct that embeds it.
// The flag is registered by [BindFlags] through the field's tags;
// [JSONOutput.EmitJSON] then lets the command short-circuit its text
// rendering when the flag is set:
//
//	type listParams struct {
//	    cli.JSONOutput
//	    Limit int `flag:"limit" desc:"maximum records to list" default:"20"`
//	}
//
//	// In Run:
//	if done, err := params.EmitJSON(entries); done {
//	    return err
//	}
//	// ... text formatting ...
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON renders result to stdout when --json was given. The first
// return value reports whether the output was handled: (false, nil)
// means the flag is off and the caller still owes the user its text
// form.
//
// A nil slice is replaced with an empty one first, so list commands
// emit [] rather than null when nothing matched.
func (o *JSONOutput) EmitJSON(result any) (bool, error) {
	if !o.OutputJSON {
		return false, nil
	}
	if value := reflect.ValueOf(result); value.Kind() == reflect.Slice && value.IsNil() {
		result = reflect.MakeSlice(value.Type(), 0, 0).Interface()
	}
	return true, WriteJSON(result)
}

// WriteJSON writes value to stdout as indented JSON. Prefer
// [JSONOutput.EmitJSON] inside commands; this is the escape hatch for
// output that is JSON regardless of flags.
func WriteJSON(value any) error {
	return encodeIndented(os.Stdout, value)
}

func encodeIndented(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
