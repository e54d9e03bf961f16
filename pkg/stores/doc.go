// Package stores persists run history in an embedded SQLite database.
// The journal records run outcomes and per-task results for later
// inspection; it is write-behind and best effort, so a broken journal
// never fails a run. The live run context stays in memory only.
package stores
