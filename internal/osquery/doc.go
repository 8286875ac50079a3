// Package osquery talks to the provisioned osqueryd executable: it reads
// the host identifier and version the daemon reports, and builds and
// supervises the long-running daemon process.
//
// The identifier read before enrollment and the --host_identifier flag
// passed at launch both come from HostIdentifier.String, so the server sees
// the same identity in both places.
package osquery
