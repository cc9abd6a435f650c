// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

// commandArguments renders the arguments shared by nix-instantiate and
// nix-build: the -A attribute, one --argstr triple per argument in
// insertion order, and the input clause last. A file is preceded by
// "--" so a path beginning with "-" is never parsed as a flag.
func (c *CallOpts) commandArguments() []string {
	arguments := make([]string, 0, 4+3*len(c.argstrs))

	if c.hasAttribute {
		arguments = append(arguments, "-A", c.attribute)
	}

	for _, argument := range c.argstrs {
		arguments = append(arguments, "--argstr", argument.name, argument.value)
	}

	switch c.input.kind {
	case inputExpression:
		arguments = append(arguments, "--expr", c.input.value)
	case inputFile:
		arguments = append(arguments, "--", c.input.value)
	default:
		panic("nix: unknown input kind")
	}

	return arguments
}
