// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
	"github.com/bureau-foundation/nixcall/lib/codec"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

type evalParams struct {
	globalParams
	callParams
	Format string `flag:"format" desc:"output format: json or cbor" default:"json"`
	Color  string `flag:"color"  desc:"colorize JSON and failure reports: auto, always, or never" default:"auto"`
}

func (a *app) evalCommand() *cli.Command {
	var params evalParams

	return &cli.Command{
		Name:    "eval",
		Summary: "Evaluate an expression and print it as JSON",
		Description: `Run nix-instantiate --eval --json --strict on FILE or --expr and
print the resulting value. The value is fully forced, so derivations
and functions inside it are errors.

With --format cbor the value is written as deterministic CBOR
instead, suitable for piping into other tools.`,
		Usage: "nixcall eval [FILE] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("eval", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Evaluate an inline expression",
				Command:     `nixcall eval --expr '{ a = 1; b = [ "x" ]; }'`,
			},
			{
				Description: "Select an attribute and pass a string argument",
				Command:     "nixcall eval ./default.nix -A config.version --argstr channel=unstable",
			},
		},
		Run: func(args []string) error {
			if params.Format != "json" && params.Format != "cbor" {
				return fmt.Errorf("--format must be json or cbor, got %q", params.Format)
			}
			color, err := useColor(params.Color, a.stdout)
			if err != nil {
				return err
			}
			opts, err := params.callOpts(args)
			if err != nil {
				return err
			}
			session, err := params.openSession("eval", a.stderr)
			if err != nil {
				return err
			}

			ctx, stop := a.interruptContext(context.Background())
			defer stop()
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			value, err := nix.Value[json.RawMessage](ctx, opts.WithEnvironment(session.environment))
			if err != nil {
				return a.reportFailure(err, params.Color)
			}

			if params.Format == "cbor" {
				return a.writeCBOR(value)
			}
			return a.writeJSON(value, color)
		},
	}
}

// writeJSON pretty-prints the evaluator's JSON, highlighted when color
// is set.
func (a *app) writeJSON(value json.RawMessage, color bool) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, value, "", "  "); err != nil {
		return fmt.Errorf("formatting result: %w", err)
	}
	indented.WriteByte('\n')

	if color {
		return quick.Highlight(a.stdout, indented.String(), "json", "terminal256", "monokai")
	}
	_, err := a.stdout.Write(indented.Bytes())
	return err
}

// writeCBOR re-encodes the evaluator's JSON as deterministic CBOR.
// Integers stay CBOR integers; only numbers with a fraction or
// exponent become floats.
func (a *app) writeCBOR(value json.RawMessage) error {
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	converted, err := convertNumbers(decoded)
	if err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return codec.NewEncoder(a.stdout).Encode(converted)
}

// convertNumbers replaces every json.Number in a decoded JSON value with
// an int64, a uint64 beyond the int64 range, or a float64.
func convertNumbers(value any) (any, error) {
	switch value := value.(type) {
	case json.Number:
		text := value.String()
		if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
			return integer, nil
		}
		if unsigned, err := strconv.ParseUint(text, 10, 64); err == nil {
			return unsigned, nil
		}
		return strconv.ParseFloat(text, 64)
	case map[string]any:
		for key, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[key] = converted
		}
		return value, nil
	case []any:
		for i, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[i] = converted
		}
		return value, nil
	default:
		return value, nil
	}
}
