// Package builtin provides the plugin kinds shipped with the rack: simple
// units that exercise the registry, arena and parameter paths.
//
// Register adds them to a catalog:
//
//	cat := plugin.NewCatalog()
//	if err := builtin.Register(cat); err != nil { ... }
//
// All units process float64 blocks in place and keep any sample memory in
// their arena region.
package builtin
