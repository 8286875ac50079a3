// Package binary provisions the pinned osqueryd release that shadow runs.
//
// # Security Model
//
// The osquery executable is:
//   - Downloaded only from the official GitHub release for Version
//   - Verified against a SHA-256 digest compiled into this package
//   - Never extracted unless the digest matched, or the operator passed
//     the explicit skip-verify bypass (which is logged at WARN)
//
// # Pipeline
//
//	resolve -> installed? -> download -> verify -> extract -> chmod -> cached
//
// Each step is a State reported through Config.OnState. EnsureInstalled is
// idempotent: when the layout already holds an executable osqueryd nothing
// touches the network.
//
// # Usage
//
//	mgr, err := binary.NewManager(binary.Config{
//	    DataDir:      "/var/lib/shadow",
//	    PlatformInfo: info,
//	})
//	if err != nil {
//	    return err
//	}
//
//	res, err := mgr.EnsureInstalled(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Path)
//
// # Architecture
//
// The package is organized into several components:
//   - Manager: orchestration, idempotency check, cleanup
//   - Downloader: streaming HTTP download with progress, no retry
//   - Verifier: SHA-256 digest check
//   - Extractor: tar.gz, zip and macOS pkg strategies
//   - Layout: where the install lives under the data directory
package binary
