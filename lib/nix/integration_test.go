// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"context"
	"testing"
)

// These tests run the real evaluator and are skipped on machines
// without Nix installed.

func requireNix(t *testing.T) {
	t.Helper()
	if _, err := FindBinary(DefaultInstantiateBinary); err != nil {
		t.Skipf("nix-instantiate not available: %v", err)
	}
}

func TestNix_ValueInteger(t *testing.T) {
	t.Parallel()
	requireNix(t)

	got, err := Value[int](context.Background(), Expression("let x = 5; in x"))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 5 {
		t.Errorf("Value = %d, want 5", got)
	}
}

func TestNix_ValueAttribute(t *testing.T) {
	t.Parallel()
	requireNix(t)

	got, err := Value[int](context.Background(), Expression("let x = 5; in { a = x; }").Attribute("a"))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 5 {
		t.Errorf("Value = %d, want 5", got)
	}
}

func TestNix_ValueArgStr(t *testing.T) {
	t.Parallel()
	requireNix(t)

	got, err := Value[string](context.Background(),
		Expression(`{ name }: "Hello, ${name}!"`).ArgStr("name", "Jill"))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != "Hello, Jill!" {
		t.Errorf("Value = %q, want %q", got, "Hello, Jill!")
	}
}

func TestNix_EvaluationError(t *testing.T) {
	t.Parallel()
	requireNix(t)

	_, err := Value[int](context.Background(), Expression("undefined-variable"))
	if !IsExit(err) {
		t.Fatalf("Value error = %v, want exit error", err)
	}
}
