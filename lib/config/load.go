// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the aep configuration: embedded defaults, then
// the config file, then AEP_* environment variables, each layer
// overriding the one below.
package config

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/ghodss/yaml"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
)

// A warnLogger accepts the loader's warnings about suspect config
// entries. logrus loggers implement it.
type warnLogger interface {
	Warnf(string, ...interface{})
}

// Loader loads the configuration for a command.
type Loader struct {
	Stdin  io.Reader
	Logger warnLogger

	// Path of the config file. "-" reads Stdin instead, "" means
	// aep.DefaultConfigFile(), whose absence is not an error.
	Path string
	// Profile overlays the named profile after loading.
	Profile string
	// SkipEnv leaves AEP_* environment variables unapplied
	// (tests).
	SkipEnv bool
}

func NewLoader(stdin io.Reader, logger warnLogger) *Loader {
	return &Loader{Stdin: stdin, Logger: logger}
}

// SetupFlags configures flagset so that running a command with
// -config or -profile sets the corresponding loader fields.
func (ldr *Loader) SetupFlags(flagset *flag.FlagSet) {
	flagset.StringVar(&ldr.Path, "config", ldr.Path, "config `file` (default "+aep.DefaultConfigFile()+", \"-\" for stdin)")
	flagset.StringVar(&ldr.Profile, "profile", ldr.Profile, "overlay the named config `profile`")
}

// Load returns the effective configuration: defaults, config file,
// selected profile, and environment variables, in increasing order of
// precedence.
func (ldr *Loader) Load() (*aep.Config, error) {
	cfg := aep.DefaultConfig()
	buf, path, err := ldr.loadBytes()
	if err != nil {
		return nil, err
	}
	if buf != nil {
		var file aep.Config
		err = yaml.Unmarshal(buf, &file)
		if err != nil {
			return nil, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		err = mergo.Merge(&cfg, file, mergo.WithOverride)
		if err != nil {
			return nil, err
		}
		ldr.warnUnknownKeys(buf)
	}
	if ldr.Profile != "" {
		cfg, err = cfg.WithProfile(ldr.Profile)
		if err != nil {
			return nil, err
		}
	}
	if !ldr.SkipEnv {
		cfg.ApplyEnv()
	}
	return &cfg, nil
}

func (ldr *Loader) loadBytes() (buf []byte, path string, err error) {
	if ldr.Path == "-" {
		buf, err = ioutil.ReadAll(ldr.Stdin)
		return buf, "stdin", err
	}
	path = ldr.Path
	explicit := path != ""
	if !explicit {
		if path = aep.DefaultConfigFile(); path == "" {
			return nil, "", nil
		}
	}
	buf, err = ioutil.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		// No config file. Defaults and environment variables
		// still apply.
		return nil, path, nil
	}
	return buf, path, err
}

func (ldr *Loader) warnUnknownKeys(buf []byte) {
	if ldr.Logger == nil {
		return
	}
	var generic map[string]interface{}
	if yaml.Unmarshal(buf, &generic) != nil {
		return
	}
	warnUnknownKeys(ldr.Logger, "", generic, reflect.TypeOf(aep.Config{}))
}

func warnUnknownKeys(log warnLogger, prefix string, data map[string]interface{}, t reflect.Type) {
	fields := map[string]reflect.Type{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Name
		if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
			name = tag
		}
		fields[name] = f.Type
	}
	for key, value := range data {
		ft, known := fields[key]
		if !known {
			// The yaml decoder matches keys
			// case-insensitively, so a differently cased key
			// still loads.
			for name, t := range fields {
				if strings.EqualFold(name, key) {
					ft, known = t, true
					break
				}
			}
		}
		if !known {
			log.Warnf("deprecated or unknown config entry: %s%s", prefix, key)
			continue
		}
		sub, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		switch {
		case ft.Kind() == reflect.Struct:
			warnUnknownKeys(log, prefix+key+".", sub, ft)
		case ft.Kind() == reflect.Map && ft.Elem().Kind() == reflect.Struct:
			// Profiles: map of profile name to Config.
			for name, profile := range sub {
				if m, ok := profile.(map[string]interface{}); ok {
					warnUnknownKeys(log, prefix+key+"."+name+".", m, ft.Elem())
				}
			}
		}
	}
}
