// Package hss implements the Hierarchical Signature System: a chain of up
// to eight LMS trees where each parent tree signs its child's public key,
// multiplying the number of signatures available from a single public key
// to the product of each level's 2^h. Built in the same style as lms/lms
// (typed private/public key structs, sentinel errors, explicit
// ToBytes/FromBytes wire formats).
package hss

import (
	"errors"

	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/lms"
)

// MaxLevels is the largest hierarchy depth the wire format and this
// implementation support.
const MaxLevels = 8

// ErrAllKeysUsed is returned by Sign when every level's leaves, all the way
// up to the top tree, have been exhausted: the hierarchy can never produce
// another signature.
var ErrAllKeysUsed = errors.New("hss: all keys used, hierarchy exhausted")

// ErrInvalidLevelCount is returned when a parameter list or parsed blob
// names a level count outside 1..MaxLevels.
var ErrInvalidLevelCount = errors.New("hss: level count must be between 1 and 8")

// ParamSet names one level's LMS/LM-OTS algorithm pairing, top to bottom.
type ParamSet struct {
	Lms common.LmsAlgorithmType
	Ots common.LmsOtsAlgorithmType
}

// SignedPublicKey is a parent level's signature over its child's public
// key: the repeated unit of an HSS signature and of a private key's cached
// intermediate signatures.
type SignedPublicKey struct {
	Signature lms.LmsSignature
	PublicKey lms.LmsPublicKey
}

// PrivateKey is a hierarchy of L LMS private keys, top (index 0) to bottom
// (index L-1), plus each non-bottom level's cached signature over its
// child's current public key. Levels are mutated in place by Sign.
type PrivateKey struct {
	params        []ParamSet
	levels        []lms.LmsPrivateKey
	signedPubKeys []SignedPublicKey // len L-1; signedPubKeys[i] signs levels[i+1].Public()
}

// PublicKey is the number of levels and the top-level LMS public key: the
// only pieces of an HSS hierarchy a verifier needs to hold.
type PublicKey struct {
	l   int
	top lms.LmsPublicKey
}

// Signature is one HSS signature: a chain of parent signatures over child
// public keys, descending from the top, followed by the bottom level's
// signature over the message itself.
type Signature struct {
	nspk          uint32
	signedPubKeys []SignedPublicKey
	bottom        lms.LmsSignature
}

// L returns the number of levels in this hierarchy.
func (priv *PrivateKey) L() int {
	return len(priv.levels)
}

// TopSeedAndID returns the seed and I of the top-level (index 0) tree, the
// pair an aux cache is bound to: container.OpenWithAuxFile uses this to
// validate a reopened aux file against the key it is paired with.
func (priv *PrivateKey) TopSeedAndID() ([]byte, common.ID) {
	return priv.levels[0].Seed(), priv.levels[0].ID()
}

// Public returns the PublicKey corresponding to priv.
func (priv *PrivateKey) Public() PublicKey {
	return PublicKey{
		l:   len(priv.levels),
		top: priv.levels[0].Public(),
	}
}

// L returns the number of levels this public key expects a signature to
// carry.
func (pub *PublicKey) L() int {
	return pub.l
}

// Top returns the top-level LMS public key.
func (pub *PublicKey) Top() lms.LmsPublicKey {
	return pub.top
}
