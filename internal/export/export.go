// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/util"
)

// ErrUnknownFormat is returned by ForFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrEmptyChat is returned when a conversation has nothing to export.
var ErrEmptyChat = errors.New("conversation has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a conversation in one format.
type Exporter interface {
	Export(sess *model.ChatSession) ([]byte, error)

	// FileExtension includes the dot, e.g. ".md".
	FileExtension() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures the Markdown exporter. JSON always writes everything.
type Options struct {
	IncludeMetadata   bool
	IncludeTimestamps bool

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns options with metadata and timestamps on.
func DefaultOptions() Options {
	return Options{IncludeMetadata: true, IncludeTimestamps: true}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Formats lists the names ForFormat accepts.
func Formats() []string {
	return []string{"markdown", "json"}
}

// ForFormat returns the exporter for name ("markdown", "md" or "json").
func ForFormat(name string, opts Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return &JSONExporter{}, nil
	}
	return nil, fmt.Errorf("%w: %q (use %s)", ErrUnknownFormat, name, strings.Join(Formats(), " or "))
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports sess into dir under a name derived from its title and id,
// and returns the path written. The whole transcript is rendered in memory.
func ToFile(sess *model.ChatSession, exp Exporter, dir string) (string, error) {
	data, err := exp.Export(sess)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("chat_%s_%s%s", sanitizeFilename(sess.Title), sanitizeFilename(sess.ID), exp.FileExtension())
	path := filepath.Join(dir, name)
	if err := WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile writes an export to path atomically.
func WriteFile(path string, data []byte) error {
	// SECURITY: transcripts are private, owner-only.
	if err := util.WriteFileAtomic(path, data, 0o600, 0o700); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are unsafe in file names on
// Windows or Unix and bounds the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
