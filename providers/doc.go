// Package providers carries the shared plumbing for broker adapters: the
// HTTP client surface, response handling, error classification, and the
// TOTP generator used by form based logins. Concrete adapters live in the
// provider subpackages.
package providers
