// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rand

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewResolver_SoftwareMode(t *testing.T) {
	resolver, err := NewResolver(ModeSoftware)
	if err != nil {
		t.Fatalf("failed to create software resolver: %v", err)
	}
	defer func() { _ = resolver.Close() }()

	if !resolver.Available() {
		t.Fatal("software resolver should be available")
	}
}

func TestNewResolver_NilConfig(t *testing.T) {
	resolver, err := NewResolver(nil)
	if err != nil {
		t.Fatalf("failed to create resolver with nil config: %v", err)
	}
	if !resolver.Available() {
		t.Fatal("resolver should be available")
	}
}

func TestNewResolver_InvalidMode(t *testing.T) {
	if _, err := NewResolver(&Config{Mode: "tpm2"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := NewResolver(ModeReader); err == nil {
		t.Fatal("expected error for reader mode without reader")
	}
}

func TestSoftwareResolver_Rand(t *testing.T) {
	resolver := Default()

	a, err := resolver.Rand(32)
	if err != nil {
		t.Fatalf("Rand() error: %v", err)
	}
	b, err := resolver.Rand(32)
	if err != nil {
		t.Fatalf("Rand() error: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("unexpected lengths %d, %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Error("two 32 byte draws should not be equal")
	}

	if _, err := resolver.Rand(-1); err == nil {
		t.Error("expected error for negative length")
	}
}

func TestReaderMode(t *testing.T) {
	resolver, err := NewResolver(&Config{Mode: ModeReader, Reader: strings.NewReader("abcdef")})
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}

	got, err := resolver.Rand(4)
	if err != nil {
		t.Fatalf("Rand() error: %v", err)
	}
	if string(got) != "abcd" {
		t.Errorf("Rand() = %q, want %q", got, "abcd")
	}

	if _, err := resolver.Rand(4); err == nil {
		t.Error("expected error when the reader runs dry")
	}
}
