package history

import (
	"fmt"
	"strings"
)

// whereBuilder assembles a parameterised WHERE clause. Column names are
// always literals from this package, never user input.
type whereBuilder struct {
	conditions []string
	args       []interface{}
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// Add appends "col = $n".
func (w *whereBuilder) Add(col string, val interface{}) {
	w.AddOp(col, "=", val)
}

// AddOp appends "col op $n".
func (w *whereBuilder) AddOp(col, op string, val interface{}) {
	w.conditions = append(w.conditions, fmt.Sprintf("%s %s $%d", col, op, w.argIndex))
	w.args = append(w.args, val)
	w.argIndex++
}

// Build returns the clause with a leading space, or "" when empty.
func (w *whereBuilder) Build() (string, []interface{}) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}
