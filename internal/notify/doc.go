// Package notify abstracts the chat delivery channel and renders the
// reminder and overdue notices sent through it.
package notify
