// Package kv is the persistence port of the directory.
//
// The directory persists exactly three records (identity set, current session,
// registration log) as opaque byte values under fixed keys. Any medium that can
// get/set/delete a value by key satisfies Store; writes must be visible to
// subsequent reads in the same process.
//
// Backends are chosen by URL scheme in Open: memory://, bolt://, sqlite://,
// postgres:// and redis://.
package kv
