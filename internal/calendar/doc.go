// Package calendar defines the contract with the external calendar
// collaborator and provides an HTTP implementation plus a no-op used when
// the integration is disabled.
package calendar
