// SPDX-License-Identifier: MPL-2.0

// Package cueutil wraps the schema-unify-validate-decode flow shared by the
// build descriptor and configuration loaders.
//
//	//go:embed build_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Descriptor](schema, data, "#Build",
//	    cueutil.WithFilename("build.cue"))
//
// Errors carry the file name and the CUE path of the offending value
// (e.g. "build.cue: projects[0].android.compile_sdk: ...").
package cueutil
