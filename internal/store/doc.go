// Package store persists the buy flow's resumable state.
//
// Three backends implement the same Load/Save/Clear contract:
//   - Store: SQLite, the default for the CLI
//   - Redis: a shared cache for multi-process deployments
//   - Memory: in-process, for tests and throwaway runs
//
// A snapshot that cannot be decoded (unknown format version, bad JSON,
// unknown lifecycle name) is cleared on load and reported as absent.
//
// The SQLite store additionally keeps an append-only transition log per
// flow. Rows are ordered by the engine's logical sequence, never by wall
// time, so a recorded flow reads back in the order it was applied.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
