// Package service implements the application's task lifecycle operations on
// top of the store interfaces, including reminder registration and the
// fire-and-forget calendar mirroring.
package service
