// SPDX-License-Identifier: MPL-2.0

// Package project models a tree of build projects and the evaluation
// dependencies between them.
//
// Each project is identified by a colon-separated path (":" is the root,
// ":app" a direct child). Output directories are computed from the graph's
// Layout when a project is added, so relocating the build directory is an
// explicit input rather than process-wide state.
//
// Projects expose optional capabilities through named extensions. Applying a
// plugin such as com.android.application attaches the "android" extension,
// which implements OptionalNamespace so an evaluator can derive a missing
// namespace from the project group.
package project
