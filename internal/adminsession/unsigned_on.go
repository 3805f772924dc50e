//go:build devsession

package adminsession

// UnsignedCompiled is true only in binaries built with -tags devsession.
const UnsignedCompiled = true
