// Package config resolves the shadow agent settings from built-in
// defaults, an optional sandboxed Lua file and command-line flags.
//
// # Layers
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Default(): built-in values, with a per-platform data directory
//  2. An optional Lua file, evaluated in a sandbox (see below)
//  3. Command-line flags and their SHADOW_* environment variables
//
// The organization token and the skip-verify bypass are deliberately
// absent from the file layer.
//
// # Lua file
//
// The file must assign a global table named shadow:
//
//	shadow = {
//	    server = "hyprwatch.example.com",
//	    data_dir = platform.is_macos and "/Library/Application Support/shadow" or "/var/lib/shadow",
//	    host_identifier = "instance",
//	    distributed_interval = 30,
//	    verbose = false,
//	}
//
// Accepted keys are server, data_dir, ca_cert, osqueryd_path,
// host_identifier, distributed_interval and verbose. Unknown keys are
// rejected. The read-only platform table from the platform package is
// available for conditionals.
//
// # Sandbox
//
// The VM has no os, io, require, dofile, loadfile, load, loadstring or
// debug. Evaluation is bounded by ParseTimeout and files by
// MaxConfigFileSize. Lines that look like hardcoded credentials are logged
// as warnings with their values redacted.
package config
