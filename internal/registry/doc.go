// Package registry defines the contract every endpoint module implements and
// turns a static catalog of modules into the immutable route table the server
// mounts at startup.
//
// A catalog is a tree of Groups. Each Group contributes a path segment, much
// like a directory, and the loader concatenates the API prefix, every group
// prefix on the way down, and the module's declared path (cut at the first
// '?') into the routable path. Loading fails on the first malformed module so
// the process never serves traffic from a partial table.
package registry
