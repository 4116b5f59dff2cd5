// Package store persists per-user documents.
//
// Backend is the storage interface, implemented by SQLiteBackend for local
// runs and tests and by SupabaseBackend for the hosted deployment.
// Repository adds typed records, validation and server-assigned IDs and
// timestamps on top of any Backend.
package store
