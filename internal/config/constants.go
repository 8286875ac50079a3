package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalShadow             = "shadow"
	luaFieldServer              = "server"
	luaFieldDataDir             = "data_dir"
	luaFieldCACert              = "ca_cert"
	luaFieldOsquerydPath        = "osqueryd_path"
	luaFieldHostIdentifier      = "host_identifier"
	luaFieldDistributedInterval = "distributed_interval"
	luaFieldVerbose             = "verbose"
)

const (
	// DefaultServer is the hosted enrollment server.
	DefaultServer = "hyprwatch.cloud"

	// DefaultHostIdentifier is the osquery host identifier mode.
	DefaultHostIdentifier = "uuid"

	// DefaultDistributedInterval is the distributed query poll period in seconds.
	DefaultDistributedInterval = 10

	// DefaultConfigFileName is looked up in the data directory when no
	// config file is given explicitly.
	DefaultConfigFileName = "shadow.lua"

	// MaxConfigFileSize bounds the Lua file read from disk.
	MaxConfigFileSize = 1 << 20

	// ParseTimeout bounds Lua evaluation.
	ParseTimeout = 5 * time.Second
)
