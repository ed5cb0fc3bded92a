// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mfkdf.
//
// go-mfkdf is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Format: "json", Output: &buf, Level: LevelDebug})

	log.With(String("policy", "vault")).Info("derived key",
		Int("threshold", 2),
		Strings("factors", []string{"password", "hotp"}),
		Bool("verified", true))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "derived key", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "vault", entry["policy"])
	assert.Equal(t, float64(2), entry["threshold"])
	assert.Equal(t, true, entry["verified"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.WithError(errors.New("tag mismatch")).Warn("integrity check failed")
	out := buf.String()
	assert.True(t, strings.Contains(out, "integrity check failed"))
	assert.True(t, strings.Contains(out, "tag mismatch"))
}

func TestSlogAdapter_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogAdapter(&SlogConfig{Output: &buf})
	_ = parent.With(String("child", "yes"))

	parent.Info("parent entry")
	assert.NotContains(t, buf.String(), "child=yes")
}

func TestNoOp(t *testing.T) {
	log := NewNoOp()
	log.Debug("x")
	log.Info("x")
	log.Warn("x")
	log.Error("x", Error(errors.New("boom")))
	assert.Equal(t, log, log.With(String("k", "v")).WithError(nil))
}
