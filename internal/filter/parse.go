// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package filter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedGraph rejects descriptions that are not a single linear chain.
	ErrUnsupportedGraph = errors.New("only single-input single-output filter chains are supported")
	// ErrUnknownFilter is returned for a filter name that is not built in.
	ErrUnknownFilter = errors.New("unknown filter")
)

// Node is one parsed element of a chain description.
type Node struct {
	Name string
	Args string
}

func (n Node) String() string {
	if n.Args == "" {
		return n.Name
	}
	return n.Name + "=" + n.Args
}

// Parse splits a chain description such as "scale=320:240,hflip" into its
// elements. Pad labels and multiple chains are rejected.
func Parse(spec string) ([]Node, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty filter description")
	}
	if strings.ContainsAny(spec, "[];") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGraph, spec)
	}
	parts := strings.Split(spec, ",")
	nodes := make([]Node, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("filter %d of %q is empty", i, spec)
		}
		name, args, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !validName(name) {
			return nil, fmt.Errorf("invalid filter name %q", name)
		}
		nodes = append(nodes, Node{Name: name, Args: strings.TrimSpace(args)})
	}
	return nodes, nil
}

// Validate parses spec and checks every filter exists and accepts the media type.
func Validate(spec string, video bool) error {
	nodes, err := Parse(spec)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		def, ok := builtins[n.Name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFilter, n.Name)
		}
		if def.video != video {
			return fmt.Errorf("filter %q does not accept %s input", n.Name, kindName(video))
		}
	}
	return nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// parseArgs splits "a:b:key=value" into named options. Positional values
// are assigned to names in order.
func parseArgs(args string, positional ...string) (map[string]string, error) {
	out := make(map[string]string)
	if args == "" {
		return out, nil
	}
	pos := 0
	for _, tok := range strings.Split(args, ":") {
		if k, v, ok := strings.Cut(tok, "="); ok {
			out[k] = v
			continue
		}
		if pos >= len(positional) {
			return nil, fmt.Errorf("too many arguments in %q", args)
		}
		out[positional[pos]] = tok
		pos++
	}
	return out, nil
}

func kindName(video bool) string {
	if video {
		return "video"
	}
	return "audio"
}
