// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// FlagsFromParams creates a [pflag.FlagSet] with flags bound to the tagged
// fields of params. params must be a pointer to a struct. Panics on
// invalid input (programming error, not runtime data).
//
// This is the convenience wrapper for the common pattern:
//
//	var params myParams
//	command := &cli.Command{
//	    Params: func() any { return &params },
//	    Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
//	        // params fields are populated after flag parsing
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers pflag entries for each tagged field in params.
// params must be a pointer to a struct.
//
// # Struct tags
//
// Three tags control flag binding:
//
//   - flag:"name" or flag:"name,n" — the long flag name and optional single-
//     character shorthand. Fields without a flag tag are skipped.
//   - desc:"help text" — the flag's help description.
//   - default:"value" — the default value, parsed according to the field's
//     Go type. If omitted, the type's zero value is used.
//
// # Supported field types
//
// string, bool, int, []string.
//
// # Struct composition
//
// Embedded struct fields are bound recursively, so shared flag groups like
// [JSONOutput] compose into command params structs by embedding.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

// binding is one field's flag registration, collected from its tags.
type binding struct {
	name        string
	shorthand   string
	description string
	defaults    string
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()

	for i := range structType.NumField() {
		field := structType.Field(i)

		// Embedded structs contribute their own tagged fields. This
		// handles both exported and unexported embedded types.
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(structValue.Field(i), flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag, tagged := field.Tag.Lookup("flag")
		if !tagged || tag == "" {
			continue
		}

		b := binding{
			description: field.Tag.Get("desc"),
			defaults:    field.Tag.Get("default"),
		}
		b.name, b.shorthand, _ = strings.Cut(tag, ",")

		fieldValue := structValue.Field(i)
		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}
		if err := registerFlag(flagSet, fieldValue.Addr().Interface(), b); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

// registerFlag adds one pflag entry pointing at the field. target is
// the address of the params field; its pointee type selects the flag
// kind and how the default tag is parsed.
func registerFlag(flagSet *pflag.FlagSet, target any, b binding) error {
	switch pointer := target.(type) {
	case *string:
		flagSet.StringVarP(pointer, b.name, b.shorthand, b.defaults, b.description)

	case *bool:
		enabled := false
		if b.defaults != "" {
			parsed, err := strconv.ParseBool(b.defaults)
			if err != nil {
				return fmt.Errorf("default for --%s: %w", b.name, err)
			}
			enabled = parsed
		}
		flagSet.BoolVarP(pointer, b.name, b.shorthand, enabled, b.description)

	case *int:
		number := 0
		if b.defaults != "" {
			parsed, err := strconv.Atoi(b.defaults)
			if err != nil {
				return fmt.Errorf("default for --%s: %w", b.name, err)
			}
			number = parsed
		}
		flagSet.IntVarP(pointer, b.name, b.shorthand, number, b.description)

	case *[]string:
		var values []string
		if b.defaults != "" {
			values = strings.Split(b.defaults, ",")
		}
		flagSet.StringSliceVarP(pointer, b.name, b.shorthand, values, b.description)

	default:
		return fmt.Errorf("unsupported type %s for flag --%s",
			reflect.TypeOf(target).Elem(), b.name)
	}

	return nil
}
