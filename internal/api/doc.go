// Package api provides the REST client for the KubeCloud backend.
//
// The client injects the bearer token from a TokenSource on every request,
// retries retryable failures with jittered exponential backoff, and refreshes
// the token once when the backend answers 401 or 403. Requests can carry
// notification options so long-running calls surface a loading indicator and
// a final success or error message through a Reporter.
package api
