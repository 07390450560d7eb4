// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSlogLoggerForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	slogger := NewSlogLogger()
	slogger.Info("service started",
		"service", "http-server",
		"restarts", int64(3),
		"backoff", 15*time.Second,
	)

	output := buf.String()
	if !strings.Contains(output, "service started") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, `"service":"http-server"`) {
		t.Errorf("expected string attr, got: %s", output)
	}
	if !strings.Contains(output, `"restarts":3`) {
		t.Errorf("expected int attr, got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected level, got: %s", output)
	}
}

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	slogger := NewSlogLogger()
	slogger.Warn("watch out")
	slogger.Error("it broke")

	output := buf.String()
	if !strings.Contains(output, `"level":"warn"`) {
		t.Errorf("expected warn level, got: %s", output)
	}
	if !strings.Contains(output, `"level":"error"`) {
		t.Errorf("expected error level, got: %s", output)
	}
}

func TestSlogLoggerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	slogger := NewSlogLogger().With("supervisor", "cardstock")
	slogger.Info("child added")

	output := buf.String()
	if !strings.Contains(output, `"supervisor":"cardstock"`) {
		t.Errorf("expected bound attr, got: %s", output)
	}
}
