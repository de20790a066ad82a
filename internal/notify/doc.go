// Package notify presents events to the user.
//
// Center holds the live toast set and mirrors the durable notification store
// over REST. Presenter maps decoded envelopes onto Center: it resolves
// subject and message copy, routes by severity, and runs per-kind side-effect
// hooks so cached application state stays fresh.
package notify
