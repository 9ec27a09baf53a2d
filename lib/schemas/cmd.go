// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package schemas implements the "aep schema" subcommands for working
// with Schema Registry schemas, field groups, and classes, and for
// generating schema documents from sample data.
package schemas

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/neep305/adobe-code-cli/sdk/go/xdm"
	"github.com/sirupsen/logrus"
)

var Command = cmd.Multi(map[string]cmd.Handler{
	"list":         listCommand{},
	"get":          getCommand{},
	"create":       createCommand{},
	"delete":       deleteCommand{},
	"field-groups": fieldGroupsCommand{},
	"classes":      classesCommand{},
	"analyze":      analyzeCommand{},
	"templates":    templatesCommand{},
})

type listCommand struct{}

func (listCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	limit := flags.Int("limit", 0, "maximum `number` of schemas per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	schemas, err := client.ListSchemas(ctx, aep.ListOptions{Limit: *limit, All: *all})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, schemas)
	if err != nil {
		return 1
	}
	return 0
}

// getCommand fetches one schema from the tenant container. Fetches go
// through a RegistryCache so the -full projection, which makes the
// registry resolve every $ref in the document, reuses cached responses.
type getCommand struct{}

func (getCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	full := flags.Bool("full", false, "resolve $ref composition and return the complete document")
	if ok, code := cmd.ParseFlags(flags, prog, args, "schema-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the schema ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	rc := &aep.RegistryCache{Client: client}
	schema, err := rc.GetSchema(ctx, flags.Arg(0), *full)
	if err != nil {
		return 1
	}
	err = output.Render(stdout, schema)
	if err != nil {
		return 1
	}
	return 0
}

// createCommand registers a schema in the tenant container. The schema
// document comes from one of three sources: a ready-made JSON or YAML
// file (-file), sample data run through inference (-from-sample), or a
// prebuilt template (-template).
//
// In the builder-driven modes, -field-group registers the custom
// fields as a reusable field group first and composes its $id into the
// schema instead of inlining the fields.
type createCommand struct{}

func (createCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	file := flags.String("file", "", "load the schema document from this JSON or YAML `file`")
	fromSample := flags.String("from-sample", "", "infer the schema from this CSV or JSON sample `file` (requires -title)")
	template := flags.String("template", "", "start from the prebuilt template with this `name` (see the templates subcommand)")
	title := flags.String("title", "", "schema `title` (required with -from-sample, overrides the template's)")
	description := flags.String("description", "", "schema `description`")
	class := flags.String("class", "", "`$id` of the base class to extend (default: the XDM profile class)")
	fieldGroup := flags.Bool("field-group", false, "register the custom fields as a field group and compose it by $id")
	dryRun := flags.Bool("dry-run", false, "print the composed schema document instead of registering it")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	sources := 0
	for _, src := range []string{*file, *fromSample, *template} {
		if src != "" {
			sources++
		}
	}
	if sources != 1 {
		err = fmt.Errorf("expected exactly one of -file, -from-sample, or -template (try -help)")
		return 2
	}
	if *fromSample != "" && *title == "" {
		err = fmt.Errorf("-from-sample requires -title (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)

	var client *aep.Client
	if !*dryRun {
		client, err = cli.NewClient(ctx, cfg)
		if err != nil {
			return 1
		}
	}

	var schema aep.Schema
	if *file != "" {
		var buf []byte
		buf, err = os.ReadFile(*file)
		if err != nil {
			return 1
		}
		err = yaml.Unmarshal(buf, &schema)
		if err != nil {
			err = fmt.Errorf("error loading schema from %s: %w", *file, err)
			return 1
		}
		if *title != "" {
			schema.Title = *title
		}
		if *description != "" {
			schema.Description = *description
		}
	} else {
		var builder *xdm.SchemaBuilder
		if *fromSample != "" {
			var records []xdm.Record
			records, err = xdm.ReadSamples(*fromSample)
			if err != nil {
				return 1
			}
			var inf *xdm.Inferred
			inf, err = xdm.Infer(records, xdm.InferOptions{EntityName: entityName(*fromSample)})
			if err != nil {
				return 1
			}
			builder = inf.Builder(*title)
		} else {
			tmpl, ok := xdm.LookupTemplate(*template)
			if !ok {
				err = fmt.Errorf("no such template %q (see the templates subcommand)", *template)
				return 1
			}
			builder = tmpl.Builder()
			if *title != "" {
				builder.Title = *title
			}
		}
		if *description != "" {
			builder.Description = *description
		}
		if *class != "" {
			builder.Class = *class
		}
		builder.TenantID = cfg.TenantID
		if *fieldGroup {
			var fg aep.FieldGroup
			fg, err = builder.FieldGroup()
			if err != nil {
				return 1
			}
			if !*dryRun {
				fg, err = client.CreateFieldGroup(ctx, fg)
				if err != nil {
					return 1
				}
				logger.WithField("FieldGroupID", fg.ID).Info("field group created")
			}
			builder.FieldGroups = append(builder.FieldGroups, fg.ID)
			builder.Fields = nil
			builder.Required = nil
		}
		schema, err = builder.Schema()
		if err != nil {
			return 1
		}
	}

	if *dryRun {
		err = output.Render(stdout, schema)
		if err != nil {
			return 1
		}
		return 0
	}
	created, err := client.CreateSchema(ctx, schema)
	if err != nil {
		return 1
	}
	err = output.Render(stdout, created)
	if err != nil {
		return 1
	}
	return 0
}

type deleteCommand struct{}

func (deleteCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	if ok, code := cmd.ParseFlags(flags, prog, args, "schema-id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the schema ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	id := flags.Arg(0)
	err = client.DeleteSchema(ctx, id)
	if err != nil {
		return 1
	}
	logger.WithField("SchemaID", id).Info("schema deleted")
	return 0
}

type fieldGroupsCommand struct{}

func (fieldGroupsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	limit := flags.Int("limit", 0, "maximum `number` of field groups per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	groups, err := client.ListFieldGroups(ctx, aep.ListOptions{Limit: *limit, All: *all})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, groups)
	if err != nil {
		return 1
	}
	return 0
}

// classesCommand lists the standard base classes from the registry's
// global container.
type classesCommand struct{}

func (classesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	limit := flags.Int("limit", 0, "maximum `number` of classes per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	classes, err := client.ListClasses(ctx, aep.ListOptions{Limit: *limit, All: *all})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, classes)
	if err != nil {
		return 1
	}
	return 0
}

// analyzeCommand inspects sample data and reports the inferred column
// types, formats, key candidates, and identity suggestions. It runs
// entirely locally and needs no credentials.
type analyzeCommand struct{}

func (analyzeCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	sample := flags.String("sample", "", "CSV or JSON sample `file` to analyze (required)")
	entity := flags.String("entity", "", "entity `name` used for primary-key detection (default: the sample file's basename)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if *sample == "" {
		err = fmt.Errorf("expected -sample with a CSV or JSON sample file (try -help)")
		return 2
	}
	records, err := xdm.ReadSamples(*sample)
	if err != nil {
		return 1
	}
	name := *entity
	if name == "" {
		name = entityName(*sample)
	}
	inf, err := xdm.Infer(records, xdm.InferOptions{EntityName: name})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, inf)
	if err != nil {
		return 1
	}
	return 0
}

// templatesCommand lists the prebuilt schema templates. It runs
// entirely locally and needs no credentials.
type templatesCommand struct{}

func (templatesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Short {
		for _, tmpl := range xdm.Templates() {
			fmt.Fprintln(stdout, tmpl.Name)
		}
		return 0
	}
	err = output.Render(stdout, xdm.Templates())
	if err != nil {
		return 1
	}
	return 0
}

// entityName derives an entity name from a sample file path:
// "data/customers.csv" becomes "customers".
func entityName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
