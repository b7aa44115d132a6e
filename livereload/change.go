package livereload

import (
	"strings"
)

// Kind of filesystem change
type Kind uint8

const (
	Modified Kind = iota
	Created
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "create"
	case Deleted:
		return "delete"
	default:
		return "update"
	}
}

func parseKind(op string) Kind {
	switch strings.ToLower(op) {
	case "create", "created":
		return Created
	case "delete", "deleted", "remove", "removed":
		return Deleted
	default:
		return Modified
	}
}

// Change to a path in the watched directory
type Change struct {
	Path string
	Kind Kind
}

func (c Change) String() string {
	return c.Kind.String() + ":" + c.Path
}

// ParseChange parses the "op:path" form of a change. Text without an op is
// treated as a modified path.
func ParseChange(s string) Change {
	op, path, ok := strings.Cut(s, ":")
	if !ok {
		return Change{Path: s, Kind: Modified}
	}
	return Change{Path: path, Kind: parseKind(op)}
}

// ParseChanges parses the "op:path;op:path" form sent to the browser
func ParseChanges(s string) (changes []Change) {
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		changes = append(changes, ParseChange(part))
	}
	return changes
}

func formatChanges(changes []Change) string {
	var sb strings.Builder
	for i, change := range changes {
		if i > 0 {
			sb.WriteString(";")
		}
		sb.WriteString(change.String())
	}
	return sb.String()
}

// coalesce removes duplicate paths, keeping the first position and the last
// kind seen for each path.
func coalesce(changes []Change) []Change {
	index := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, change := range changes {
		if i, ok := index[change.Path]; ok {
			out[i].Kind = change.Kind
			continue
		}
		index[change.Path] = len(out)
		out = append(out, change)
	}
	return out
}
