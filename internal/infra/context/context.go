// Package context carries request-scoped values between transport, services and logging.
package context

type contextKey string
