// Package session holds the process-wide authenticated session.
//
// At most one Session is active at a time. Establish replaces it, Clear removes
// it, and Current restores it from the kv port on first use after a restart.
// The durable record is last-write-wins; Manager serializes its own
// read-modify-write so memory and store never disagree within a process.
package session
