// Package model defines shared data types used across the console agent.
//
// Conventions:
//   - Wire field names follow the KubeCloud backend: "type", "severity",
//     "data", "task_id", "timestamp".
//   - Timestamps: time.Time, server-assigned, RFC 3339 on the wire.
//   - IDs: server-assigned strings for durable notifications, locally
//     generated uuid-based strings for transient toasts.
package model
