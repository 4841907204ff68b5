package domain

import "github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"

var allowedTransitions = map[workspace.Status][]workspace.Status{
	workspace.StatusBacklog:    {workspace.StatusTodo, workspace.StatusCanceled},
	workspace.StatusTodo:       {workspace.StatusInProgress, workspace.StatusBacklog, workspace.StatusCanceled},
	workspace.StatusInProgress: {workspace.StatusDone, workspace.StatusTodo, workspace.StatusCanceled},
	workspace.StatusDone:       {workspace.StatusTodo},
	workspace.StatusCanceled:   {workspace.StatusBacklog},
}

// CanTransition reports whether a widget may move from one status to another.
// Staying in the same status is not a transition.
func CanTransition(from, to workspace.Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
