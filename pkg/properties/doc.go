// SPDX-License-Identifier: MPL-2.0

// Package properties loads ordered, immutable key/value property sets.
//
// Sources are Java-style .properties files (the key.properties convention used
// for signing settings) and prefixed environment variables. A missing source is
// never an error: it yields an empty set so callers fall back to defaults.
package properties
