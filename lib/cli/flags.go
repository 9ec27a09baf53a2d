// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the output flags and rendering shared by aep
// subcommands.
package cli

import (
	"flag"
	"io"

	"rsc.io/getopt"
)

// OutputFlagValues are the output-control flags accepted by every
// subcommand that prints API objects.
type OutputFlagValues struct {
	Format  string
	Short   bool
	Verbose bool
}

// NewOutputFlags returns OutputFlagValues with defaults filled in.
func NewOutputFlags() *OutputFlagValues {
	return &OutputFlagValues{Format: "json"}
}

// SetFlags registers the output flags, with their single-letter
// spellings, on a subcommand's flag set.
func (v *OutputFlagValues) SetFlags(flags *flag.FlagSet) {
	flags.StringVar(&v.Format, "format", v.Format, "output format: json, yaml, or id")
	flags.StringVar(&v.Format, "f", v.Format, "output format (shorthand)")
	flags.BoolVar(&v.Short, "short", v.Short, "print IDs only (equivalent to -format=id)")
	flags.BoolVar(&v.Short, "s", v.Short, "print IDs only (shorthand)")
	flags.BoolVar(&v.Verbose, "verbose", v.Verbose, "print more debug/progress messages on stderr")
	flags.BoolVar(&v.Verbose, "v", v.Verbose, "verbose (shorthand)")
}

// OutputFlagSet returns a getopt-style flag set declaring the shared
// output flags with their long/short aliases, and the struct the
// parsed values land in. cmd/aep parses (and discards) a copy of the
// command line with it so output flags may precede the subcommand
// word.
func OutputFlagSet() (*getopt.FlagSet, *OutputFlagValues) {
	values := NewOutputFlags()
	flags := getopt.NewFlagSet("", flag.ContinueOnError)
	flags.StringVar(&values.Format, "format", values.Format, "output format: json, yaml, or id")
	flags.Alias("f", "format")
	flags.BoolVar(&values.Short, "short", false, "print IDs only (equivalent to --format=id)")
	flags.Alias("s", "short")
	flags.BoolVar(&values.Verbose, "verbose", false, "print more debug/progress messages on stderr")
	flags.Alias("v", "verbose")
	return flags, values
}

// LogLevel returns the ctxlog level implied by the flags.
func (v *OutputFlagValues) LogLevel() string {
	if v.Verbose {
		return "debug"
	}
	return "info"
}

// Render writes obj to w in the format the flags selected.
func (v *OutputFlagValues) Render(w io.Writer, obj interface{}) error {
	format := v.Format
	if v.Short {
		format = "id"
	}
	return Render(w, format, obj)
}
