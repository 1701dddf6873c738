// SPDX-License-Identifier: MPL-2.0

// Package config loads buildorch settings using Viper with CUE as the file
// format.
//
// Settings come from, in increasing precedence: built-in defaults, a
// config.cue file (the explicit --config path, else the user config
// directory, else the working directory), and BUILDORCH_* environment
// variables (BUILDORCH_BUILD_ROOT, BUILDORCH_UI_VERBOSE, ...). The file is
// validated against an embedded CUE schema before it is merged.
package config
