package st4

import (
	"time"

	"github.com/google/uuid"

	"github.com/rydnr/stringtemplate4/internal"
)

// Debug event kinds. The interpreter-side kinds re-export internal's
// constants so callers never import the internal package.
const (
	EventConstruction = internal.DebugEventConstruction
	EventEvalExpr     = internal.DebugEventEvalExpr
	EventEvalTemplate = internal.DebugEventEvalTemplate
	EventIndent       = internal.DebugEventIndent
	EventAddAttribute = "add_attribute"
)

// Debug event data keys.
const (
	DebugDataAttribute = "attribute"
)

// DebugEvent is one entry in the opt-in render trace (WithDebug). The
// log is a plain slice; rendering it into an inspector UI is out of
// scope.
type DebugEvent struct {
	ID       string
	Kind     string
	Template string
	When     time.Time
	Data     map[string]any
}

func newDebugEvent(kind, template string, data map[string]any) DebugEvent {
	return DebugEvent{
		ID:       uuid.New().String(),
		Kind:     kind,
		Template: template,
		When:     time.Now(),
		Data:     data,
	}
}
