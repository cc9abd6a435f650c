// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/nixcall/lib/nix"
)

// globalParams are accepted by every command.
type globalParams struct {
	ConfigPath string        `flag:"config"    desc:"configuration file (default: $NIXCALL_CONFIG, else built-in defaults)"`
	LogLevel   string        `flag:"log-level" desc:"override log.level: debug, info, warn, or error"`
	Timeout    time.Duration `flag:"timeout"   desc:"abort the Nix invocation after this long (0 means no limit)"`
}

// callParams select what to evaluate or build.
type callParams struct {
	Expr       string   `flag:"expr"        desc:"evaluate this expression instead of a file"`
	Attribute  string   `flag:"attr,A"      desc:"attribute path to select from the result"`
	ArgStrs    []string `flag:"argstr"      desc:"pass NAME=VALUE as a string argument (repeatable)"`
	ArgStrFile string   `flag:"argstr-file" desc:"JSON object of string arguments; comments and trailing commas allowed"`
}

// callOpts builds the call from the flags and the positional
// arguments. Exactly one of a FILE argument or --expr is required.
// Arguments from --argstr-file are applied in name order, then
// --argstr flags in command-line order, so a flag overrides the file.
func (p *callParams) callOpts(args []string) (*nix.CallOpts, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one FILE argument, got %d: %s", len(args), strings.Join(args, " "))
	}

	var opts *nix.CallOpts
	switch {
	case p.Expr != "" && len(args) == 1:
		return nil, fmt.Errorf("--expr and FILE %q are mutually exclusive", args[0])
	case p.Expr != "":
		opts = nix.Expression(p.Expr)
	case len(args) == 1:
		opts = nix.File(args[0])
	default:
		return nil, fmt.Errorf("a FILE argument or --expr is required")
	}

	if p.Attribute != "" {
		opts.Attribute(p.Attribute)
	}

	if p.ArgStrFile != "" {
		fileArguments, err := readArgStrFile(p.ArgStrFile)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(fileArguments))
		for name := range fileArguments {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			opts.ArgStr(name, fileArguments[name])
		}
	}

	for _, argument := range p.ArgStrs {
		name, value, err := parseArgStr(argument)
		if err != nil {
			return nil, err
		}
		opts.ArgStr(name, value)
	}

	return opts, nil
}

// parseArgStr splits NAME=VALUE at the first "=". VALUE may be empty
// and may itself contain "=".
func parseArgStr(argument string) (string, string, error) {
	name, value, found := strings.Cut(argument, "=")
	if !found {
		return "", "", fmt.Errorf("--argstr %q: expected NAME=VALUE", argument)
	}
	if name == "" {
		return "", "", fmt.Errorf("--argstr %q: empty name", argument)
	}
	return name, value, nil
}

// readArgStrFile reads a JSONC object whose values are all strings.
func readArgStrFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading --argstr-file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing --argstr-file %s: %w", path, err)
	}

	arguments := make(map[string]string, len(raw))
	for name, value := range raw {
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("--argstr-file %s: %q must be a string, got %T", path, name, value)
		}
		if name == "" {
			return nil, fmt.Errorf("--argstr-file %s: empty argument name", path)
		}
		arguments[name] = text
	}
	return arguments, nil
}
