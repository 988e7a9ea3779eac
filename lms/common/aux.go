package common

// AuxCache is the capability an LMS private key uses to memoize upper
// Merkle tree nodes across signing calls, so that authentication paths
// don't re-derive the whole tree on every signature. Implementations live
// in package aux; this interface lets lms/lms depend only on the shape it
// needs, not on the mmap-backed file format itself.
type AuxCache interface {
	// Get returns the cached node at heap index r (root = 1), if present.
	Get(r uint32) ([]byte, bool)

	// Put stores the node at heap index r. Only called while the cache is
	// being populated; see Populating.
	Put(r uint32, value []byte)

	// Populating reports whether the cache currently accepts Put calls.
	// It is true during the initial root computation (key generation or
	// first load) and false afterwards: per-signature lookups may read a
	// populated cache but never extend it, since aux writes made during
	// signing are an optimization of the *next* call, not something that
	// needs to be persisted immediately.
	Populating() bool
}
