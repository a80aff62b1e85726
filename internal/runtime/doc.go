// Package runtime provides the execution context for revbridge commands.
//
// It owns the backend bridge, the git service and the authenticator, and
// turns their events into console and log-file output.
package runtime
