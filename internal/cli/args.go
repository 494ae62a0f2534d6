// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positionals.
//
// Accepted forms:
//
//	--name value   -n value   --name=value   --name (boolean)
//
// Names registered as boolean never consume the following argument, so
// `ask --think "why?"` keeps the question positional. Everything after a
// bare "--" is positional.
type ArgParser struct {
	flags      map[string]string
	bools      map[string]bool
	positional []string
}

// NewArgParser parses raw. boolNames lists the flags that take no value.
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	isBool := make(map[string]bool, len(boolNames))
	for _, n := range boolNames {
		isBool[n] = true
	}

	p := &ArgParser{
		flags: make(map[string]string),
		bools: make(map[string]bool),
	}
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if key, val, ok := strings.Cut(name, "="); ok {
			if isBool[key] {
				b, err := ParseBool(val)
				p.bools[key] = err == nil && b
			} else {
				p.flags[key] = val
			}
			continue
		}
		if !isBool[name] && i+1 < len(raw) && !looksLikeFlag(raw[i+1]) {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.bools[name] = true
	}
	return p
}

func looksLikeFlag(s string) bool {
	return len(s) > 1 && s[0] == '-'
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns the value of the first of names that was given.
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v, ok := p.flags[n]; ok {
			return v
		}
	}
	return ""
}

// FlagInt parses an integer flag, returning def when absent.
func (p *ArgParser) FlagInt(def int, names ...string) (int, error) {
	v := p.Flag(names...)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("--%s must be an integer, got %q", names[0], v)
	}
	return n, nil
}

// Bool reports whether any of names was set.
func (p *ArgParser) Bool(names ...string) bool {
	for _, n := range names {
		if p.bools[n] {
			return true
		}
	}
	return false
}

// Has reports whether a flag was given in any form.
func (p *ArgParser) Has(name string) bool {
	_, s := p.flags[name]
	_, b := p.bools[name]
	return s || b
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// Rest returns the positionals from index on.
func (p *ArgParser) Rest(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// Join joins the positionals from index on with spaces.
func (p *ArgParser) Join(index int) string {
	return strings.Join(p.Rest(index), " ")
}

// Count returns the number of positionals.
func (p *ArgParser) Count() int {
	return len(p.positional)
}

// ParseBool accepts true/false, yes/no, y/n, 1/0 and on/off.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", s)
}
