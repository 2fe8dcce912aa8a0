// Package store provides the SQLite rule library: versioned harmonization
// rules grouped by project.
//
// Each saved rule is a row keyed by (project_id, source, target, version)
// holding the serialized rule and its content fingerprint. Saving a rule
// whose fingerprint matches the latest version for its pair is a no-op, so
// re-importing the same rule file does not create new versions.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Listings are ordered deterministically: by pair in first-saved order,
// then by version.
package store
