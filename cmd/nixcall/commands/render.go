// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/nixcall/cmd/nixcall/cli"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

// useColor decides whether output to w is styled. mode is the --color
// flag value.
func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		return cli.IsTerminal(w) && os.Getenv("NO_COLOR") == "", nil
	default:
		return false, fmt.Errorf("--color must be auto, always, or never, got %q", mode)
	}
}

// failureStyles are the lipgloss styles of a failure report.
type failureStyles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	stderr lipgloss.Style
	hint   lipgloss.Style
}

func newFailureStyles(w io.Writer, color bool) failureStyles {
	// Pin the profile: lipgloss otherwise re-detects from the writer,
	// and --color always must survive a pipe.
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return failureStyles{
		title: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		label: renderer.NewStyle().Faint(true),
		stderr: renderer.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1),
		hint: renderer.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// renderFailure writes a report of buildErr to w.
func renderFailure(w io.Writer, buildErr *nix.BuildError, color bool) {
	styles := newFailureStyles(w, color)

	var report strings.Builder
	line := func(text string) {
		report.WriteString(text)
		report.WriteByte('\n')
	}
	field := func(label, value string) {
		line(styles.label.Render(label+":") + " " + value)
	}

	switch buildErr.Kind {
	case nix.ErrorNotFound:
		line(styles.title.Render(buildErr.Program + " is not available"))
		field("error", fmt.Sprint(buildErr.Err))
		line(styles.hint.Render("Install Nix (https://nixos.org/download), or point nix.instantiate and nix.build in the config file at existing binaries."))
	case nix.ErrorExit:
		line(styles.title.Render(fmt.Sprintf("%s failed (%s)", buildErr.Program, buildErr.Status)))
		field("command", buildErr.Command())
	case nix.ErrorDecode:
		line(styles.title.Render("unexpected output from " + buildErr.Program))
		field("command", buildErr.Command())
		field("error", fmt.Sprint(buildErr.Err))
	case nix.ErrorOutput:
		line(styles.title.Render(buildErr.Program + ": " + buildErr.Message))
		field("command", buildErr.Command())
	default:
		line(styles.title.Render("running " + buildErr.Program + " failed"))
		field("command", buildErr.Command())
		field("error", fmt.Sprint(buildErr.Err))
	}

	if len(buildErr.Stderr) > 0 {
		line(styles.label.Render("stderr:"))
		line(styles.stderr.Render(strings.Join(buildErr.Stderr, "\n")))
	}

	io.WriteString(w, report.String())
}

// reportFailure renders a *nix.BuildError and converts it to an exit
// code. Other errors are returned unchanged for main to print.
func (a *app) reportFailure(err error, colorMode string) error {
	var buildErr *nix.BuildError
	if !errors.As(err, &buildErr) {
		return err
	}
	color, colorErr := useColor(colorMode, a.stderr)
	if colorErr != nil {
		color = false
	}
	renderFailure(a.stderr, buildErr, color)
	return &cli.ExitError{Code: 1}
}
