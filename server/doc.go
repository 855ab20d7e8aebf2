/*
Package server provides a read-only HTTP view of one dataset while it is being acquired
or after it has been saved.  It also holds the TOML configuration that selects the
storage engine, log file and cache sizes for the g2s executable.

Endpoints:

	GET /api/info                         summary metadata, dense shape, state, image count
	GET /api/image?channel=1&time=3       one image, format=raw (default), png or meta
	GET /api/coords                       coordinates of all stored images
	GET /api/load                         storage throughput over the last second
	GET /metrics                          prometheus metrics
*/
package server
