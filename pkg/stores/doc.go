// Package stores provides the SQLite-backed progress store that makes
// multi-step installs resumable across invocations. Schema management uses
// embedded golang-migrate migrations.
package stores
