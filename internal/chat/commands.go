package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// handleCommand executes slash commands against the task store. Commands
// never reach the model; their responses are plain text the avatar speaks
// like any other reply.
//
// Supported commands:
//
//	/view              list pending tasks
//	/add <text>        add a pending task
//	/done <id>         mark a task completed
//	/remove <id>       delete a task
func (c *Companion) handleCommand(ctx context.Context, user memory.User, input string) (string, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(input), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "/view":
		tasks, err := c.stores.Tasks.Pending(ctx, user.ID)
		if err != nil {
			return "", fmt.Errorf("chat: view tasks: %w", err)
		}
		return renderTaskList(tasks), nil

	case "/add":
		if rest == "" {
			return "Tell me what to add, like: /add water the plants", nil
		}
		task, err := c.stores.Tasks.Add(ctx, user.ID, rest)
		if err != nil {
			return "", fmt.Errorf("chat: add task: %w", err)
		}
		return fmt.Sprintf("Added to your list: [%d] %s", task.ID, task.Text), nil

	case "/done":
		id, ok := parseTaskID(rest)
		if !ok {
			return "Which task? Use the number from /view, like: /done 3", nil
		}
		done, err := c.stores.Tasks.Complete(ctx, user.ID, id)
		if err != nil {
			return "", fmt.Errorf("chat: complete task: %w", err)
		}
		if !done {
			return fmt.Sprintf("I couldn't find a pending task [%d] on your list.", id), nil
		}
		return fmt.Sprintf("Nice work! Task [%d] is done.", id), nil

	case "/remove":
		id, ok := parseTaskID(rest)
		if !ok {
			return "Which task? Use the number from /view, like: /remove 3", nil
		}
		removed, err := c.stores.Tasks.Remove(ctx, user.ID, id)
		if err != nil {
			return "", fmt.Errorf("chat: remove task: %w", err)
		}
		if !removed {
			return fmt.Sprintf("I couldn't find task [%d] on your list.", id), nil
		}
		return fmt.Sprintf("Removed task [%d] from your list.", id), nil

	default:
		return "Command executed.", nil
	}
}

func parseTaskID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// renderTaskList formats pending tasks the way the avatar reads them out.
func renderTaskList(tasks []memory.Task) string {
	if len(tasks) == 0 {
		return "\n--- Your To-Do List ---\n🎉 No pending tasks! You're all caught up.\n-----------------------\n"
	}

	var b strings.Builder
	b.WriteString("\n--- Your To-Do List ---")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n  [%d] %s", t.ID, t.Text)
	}
	b.WriteString("\n-----------------------\n")
	return b.String()
}
