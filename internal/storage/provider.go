package storage

import "avatarpipe/internal/ports"

// Provider is the archive contract used by the publication step and the
// API health check. It is an alias to ports.StorageProvider to keep
// call-sites simple.
type Provider = ports.StorageProvider
