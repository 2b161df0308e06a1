// Package events provides a minimal in-process event system used to hand a
// freshly persisted reminder to the dispatch queue without coupling the
// service layer to the queue implementation.
package events
