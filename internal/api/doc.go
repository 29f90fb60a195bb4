// Package api provides the HTTP request interface and WebSocket state
// stream for the TV bridge.
//
// It exposes pairing, connection, direct control, scene, and sync-group
// operations over a flat JSON surface. Every response carries a success
// flag; failures add an error string and map to 500, or 404 for missing
// scenes, groups, and devices.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
