// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}

func TestNew_JSONFormatCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})

	l.WithField("chat_id", "c1").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "c1", entry["chat_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestInitAndOr(t *testing.T) {
	prev := L()
	t.Cleanup(func() {
		mu.Lock()
		std = prev
		mu.Unlock()
	})

	var buf bytes.Buffer
	l := Init(Options{Level: "info", Output: &buf})
	assert.Same(t, l, L())
	assert.Equal(t, logrus.FieldLogger(l), Or(nil))

	other := Discard()
	assert.Equal(t, logrus.FieldLogger(other), Or(other))
}

func TestInitFile(t *testing.T) {
	prev := L()
	t.Cleanup(func() {
		mu.Lock()
		std = prev
		mu.Unlock()
	})

	path := filepath.Join(t.TempDir(), "chatcore.log")
	l, closer, err := InitFile(Options{Level: "info"}, path)
	require.NoError(t, err)
	l.Info("written")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
}
