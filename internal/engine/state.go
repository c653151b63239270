package engine

import (
	"fmt"
	"strings"
)

// State is where an Engine is in applying its fixture.
type State int

const (
	StateIdle State = iota
	StateApplying
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplying:
		return "applying"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Operation is what an Engine does with a fixture store.
type Operation int

const (
	// OpNone does nothing.
	OpNone Operation = iota
	// OpInsert inserts every row without deleting anything first.
	OpInsert
	// OpDeleteAll deletes every row of every table the store names.
	OpDeleteAll
	// OpCleanInsert deletes every row of the store's tables, then inserts the
	// store's rows.
	OpCleanInsert
)

func (o Operation) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpInsert:
		return "insert"
	case OpDeleteAll:
		return "delete-all"
	case OpCleanInsert:
		return "clean-insert"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// ParseOperation parses the names printed by Operation.String. Underscores
// and case are ignored.
func ParseOperation(s string) (Operation, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch norm {
	case "none", "":
		return OpNone, nil
	case "insert":
		return OpInsert, nil
	case "delete-all", "deleteall":
		return OpDeleteAll, nil
	case "clean-insert", "cleaninsert":
		return OpCleanInsert, nil
	default:
		return OpNone, fmt.Errorf("unknown operation %q", s)
	}
}

func (o Operation) deletes() bool {
	return o == OpDeleteAll || o == OpCleanInsert
}

func (o Operation) inserts() bool {
	return o == OpInsert || o == OpCleanInsert
}
