// Package domain contains the core entities of the task bot: tasks, users
// and reminders. Entities carry their own validation and know nothing about
// storage, queueing or delivery.
package domain
