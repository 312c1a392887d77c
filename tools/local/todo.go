package local

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/martinemde/grokagent/tools"
)

var (
	todoStatuses   = map[string]bool{"pending": true, "in_progress": true, "completed": true}
	todoPriorities = map[string]bool{"high": true, "medium": true, "low": true}
)

// TodoList is an in-memory plan the agent maintains across rounds.
type TodoList struct {
	mu    sync.RWMutex
	items []tools.TodoItem
}

// NewTodoList creates an empty list.
func NewTodoList() *TodoList {
	return &TodoList{}
}

// Create replaces the list.
func (t *TodoList) Create(ctx context.Context, items []tools.TodoItem) tools.Result {
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Content) == "" {
			return tools.Fail("todos[%d]: id and content are required", i)
		}
		if seen[item.ID] {
			return tools.Fail("todos[%d]: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = true
		if !todoStatuses[item.Status] {
			return tools.Fail("todos[%d]: status must be one of pending, in_progress, completed", i)
		}
		if !todoPriorities[item.Priority] {
			return tools.Fail("todos[%d]: priority must be one of high, medium, low", i)
		}
	}

	t.mu.Lock()
	t.items = append([]tools.TodoItem(nil), items...)
	out := formatTodos(t.items)
	t.mu.Unlock()
	return tools.OK(out)
}

// Update changes existing items. Either every update applies or none does.
func (t *TodoList) Update(ctx context.Context, updates []tools.TodoUpdate) tools.Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := append([]tools.TodoItem(nil), t.items...)
	for i, u := range updates {
		idx := -1
		for j := range next {
			if next[j].ID == u.ID {
				idx = j
				break
			}
		}
		if idx < 0 {
			return tools.Fail("updates[%d]: todo %q not found", i, u.ID)
		}
		if u.Status != "" {
			if !todoStatuses[u.Status] {
				return tools.Fail("updates[%d]: status must be one of pending, in_progress, completed", i)
			}
			next[idx].Status = u.Status
		}
		if u.Priority != "" {
			if !todoPriorities[u.Priority] {
				return tools.Fail("updates[%d]: priority must be one of high, medium, low", i)
			}
			next[idx].Priority = u.Priority
		}
		if u.Content != "" {
			next[idx].Content = u.Content
		}
	}
	t.items = next
	return tools.OK(formatTodos(t.items))
}

// Items returns a copy of the list.
func (t *TodoList) Items() []tools.TodoItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]tools.TodoItem(nil), t.items...)
}

func formatTodos(items []tools.TodoItem) string {
	if len(items) == 0 {
		return "Todo list is empty"
	}
	counts := map[string]int{}
	for _, item := range items {
		counts[item.Status]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d todos (pending:%d, in_progress:%d, completed:%d)", len(items), counts["pending"], counts["in_progress"], counts["completed"])
	for _, item := range items {
		fmt.Fprintf(&b, "\n%s %s [%s]", statusMark(item.Status), item.Content, item.Priority)
	}
	return b.String()
}

func statusMark(status string) string {
	switch status {
	case "completed":
		return "[x]"
	case "in_progress":
		return "[~]"
	default:
		return "[ ]"
	}
}
