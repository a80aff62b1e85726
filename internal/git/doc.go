// Package git runs the git command line on behalf of the application.
//
// It provides:
//   - CommandRunner, the executor returning exit code, stdout and stderr
//   - WithTokenAuth, which scopes a bearer token to one operation by rewriting
//     the origin URL and always restoring it
//   - Service, the synchronisation operations (fetch, pull, push, clone,
//     branches, checkout, merge, log, dirty state) returning result records
//   - the environment helpers used to run a bundled, non-interactive toolchain
//
// This package should be the only place where git commands are executed.
package git
