// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd defines the Handler interface implemented by every aep
// subcommand, and provides the dispatch, version, and flag-parsing
// plumbing shared by all of them.
package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/neep305/adobe-code-cli/sdk/go/version"
	"github.com/sirupsen/logrus"
)

// A Handler runs a command with the given arguments, and returns an
// exit code.
type Handler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int

// RunCommand calls f(prog, args, ...).
func (f HandlerFunc) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return f(prog, args, stdin, stdout, stderr)
}

// Version is a Handler that prints the version number assigned at
// build time, along with the Go runtime version.
var Version versionCommand

type versionCommand struct{}

func (versionCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	prog = strings.TrimSuffix(prog, " --version")
	prog = strings.TrimSuffix(prog, " -version")
	prog = strings.TrimSuffix(prog, " version")
	fmt.Fprintf(stdout, "%s %s (%s)\n", prog, version.GetVersion(), runtime.Version())
	return 0
}

// Multi returns a Handler that looks up its first argument in m, and
// invokes the resulting Handler with the remaining args.
//
// If the program name itself (minus any "aep-" prefix) is a key in m,
// the corresponding Handler is invoked without consuming any
// arguments, so a symlink named aep-ingest behaves like "aep ingest".
//
// Example:
//
//	os.Exit(Multi(map[string]Handler{
//	        "foobar": h,
//	})("/usr/bin/multi", []string{"foobar", "baz"}, os.Stdin, os.Stdout, os.Stderr))
//
// ...runs h with args {"baz"}.
func Multi(m map[string]Handler) Handler {
	return multi(m)
}

type multi map[string]Handler

func (m multi) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	_, basename := filepath.Split(prog)
	basename = strings.TrimPrefix(basename, "aep-")
	if h, ok := m[basename]; ok {
		return h.RunCommand(prog, args, stdin, stdout, stderr)
	} else if len(args) < 1 {
		fmt.Fprintf(stderr, "usage: %s command [args]\n", prog)
		m.Usage(stderr)
		return 2
	} else if h, ok := m[args[0]]; ok {
		return h.RunCommand(prog+" "+args[0], args[1:], stdin, stdout, stderr)
	} else {
		fmt.Fprintf(stderr, "%s: unrecognized command %q\n", prog, args[0])
		m.Usage(stderr)
		return 2
	}
}

// Usage prints a sorted list of m's subcommands.
func (m multi) Usage(stderr io.Writer) {
	var subcommands []string
	for sc := range m {
		if strings.HasPrefix(sc, "-") {
			// Some subcommands have alternate versions
			// like "--version" for compatibility. Don't
			// clutter the subcommand summary with those.
			continue
		}
		subcommands = append(subcommands, sc)
	}
	sort.Strings(subcommands)
	fmt.Fprintf(stderr, "\nAvailable commands:\n")
	for _, sc := range subcommands {
		fmt.Fprintf(stderr, "    %s\n", sc)
	}
}

// NoPrefixFormatter is a logrus formatter that outputs each message
// verbatim, with no timestamp or severity prefix. It suits commands
// whose log output is addressed to an interactive user.
type NoPrefixFormatter struct{}

// Format returns the entry's message followed by a newline.
func (NoPrefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(entry.Message + "\n"), nil
}
