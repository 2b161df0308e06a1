package notify

import (
	"fmt"
	"time"

	"github.com/mpetrenko/taskbot/internal/domain"
)

// dueDateLayout is the user-facing date format used across all notices.
const dueDateLayout = "02.01.2006 15:04"

// RenderReminder builds the notice sent when a task's reminder fires.
func RenderReminder(task *domain.Task) string {
	return fmt.Sprintf(
		"🔔 <b>Task reminder!</b>\n\n"+
			"📌 <b>%s</b>\n"+
			"📝 %s\n\n"+
			"📅 Due: %s\n"+
			"🎯 Priority: %s %s",
		task.Title,
		descriptionOrPlaceholder(task.Description),
		FormatDueDate(task.DueAt),
		priorityEmoji(task.Priority),
		task.Priority,
	)
}

// RenderOverdue builds the one-time notice sent when a task passes its due
// time without being completed.
func RenderOverdue(task *domain.Task) string {
	return fmt.Sprintf(
		"⚠️ <b>Overdue task!</b>\n\n"+
			"📌 <b>%s</b>\n"+
			"📝 %s\n\n"+
			"📅 Was due: %s\n"+
			"🎯 Priority: %s %s\n\n"+
			"Time to get it done! 💪",
		task.Title,
		descriptionOrPlaceholder(task.Description),
		FormatDueDate(task.DueAt),
		priorityEmoji(task.Priority),
		task.Priority,
	)
}

// FormatDueDate renders an optional timestamp for display.
func FormatDueDate(t *time.Time) string {
	if t == nil {
		return "not set"
	}
	return t.Format(dueDateLayout)
}

func descriptionOrPlaceholder(description string) string {
	if description == "" {
		return "No description"
	}
	return description
}

func priorityEmoji(priority domain.TaskPriority) string {
	switch priority {
	case domain.TaskPriorityLow:
		return "🟢"
	case domain.TaskPriorityHigh:
		return "🔴"
	default:
		return "🟡"
	}
}
