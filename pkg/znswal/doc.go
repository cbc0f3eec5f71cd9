// Package znswal wraps a storage backend so that SQL write-ahead log files
// are redirected onto the zones of a zonefs-style ZNS SSD mount, absorbing
// the engine's random-offset WAL writes into a buffer that flushes
// sequentially at sync points.
//
// Typical use:
//
//	shim, err := znswal.New(znswal.WithRoot("/mnt/zns0"))
//	backend := shim.Wrap(vfsbackend.NewOSBackend())
package znswal
