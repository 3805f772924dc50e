//go:build !devsession

package adminsession

// UnsignedCompiled is false in regular builds: unsigned admin sessions can
// never be accepted, whatever the runtime configuration says.
const UnsignedCompiled = false
