// Package notifier delivers chat messages to the configured destination.
//
// Delivery is synchronous: Notify returns once the transport accepted the
// message or every attempt failed. The service applies a token-bucket rate
// limit, optional retries with jittered backoff, and an optional dedup window
// so the same text is not sent twice in a row.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of delivered messages.
package notifier
