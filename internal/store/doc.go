// Package store defines the persistence interfaces consumed by the services
// and sweepers, along with the shared database abstraction and sentinel
// errors. Implementations live under internal/platform.
package store
