// Package pkgcache stores extracted packages on disk and remembers, for the
// lifetime of the process, which packages were already resolved and what
// they depend on.
//
// The on-disk tree is authoritative and survives restarts:
//
//	<root>/<Name>.<Version>/lib/<platform-tag>/...
//	<root>/<Name>.<Version>/<name>.nuspec
//
// The session maps only save work; a Watcher drops session entries when their
// directories disappear from disk.
package pkgcache
