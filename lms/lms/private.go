// Package lms implements Leighton-Micali Hash-Based Signatures (RFC 8554)
//
// This file implements the private key and signing logic.
package lms

import (
	"encoding/binary"
	"errors"

	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/ots"

	"crypto/rand"
	"io"
)

// ErrKeyExhausted is returned by Sign once q has reached 2^h: every leaf of
// this tree has been used and no further signatures are possible from it.
var ErrKeyExhausted = errors.New("lms: private key exhausted, no leaves remain")

// NewPrivateKey returns a LmsPrivateKey, seeded by a cryptographically secure
// random number generator.
func NewPrivateKey(tc common.LmsAlgorithmType, otstc common.LmsOtsAlgorithmType) (LmsPrivateKey, error) {
	var err error
	tc, err = tc.LmsType()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	params, err := tc.LmsParams()
	if err != nil {
		return LmsPrivateKey{}, err
	}

	seed := make([]byte, params.M)
	_, err = rand.Read(seed)
	if err != nil {
		return LmsPrivateKey{}, err
	}
	idbytes := make([]byte, common.ID_LEN)
	_, err = rand.Read(idbytes)
	if err != nil {
		return LmsPrivateKey{}, err
	}
	id := common.ID(idbytes)

	return NewPrivateKeyFromSeed(tc, otstc, id, seed)
}

// NewPrivateKeyFromSeed returns a new LmsPrivateKey, using the algorithm from
// Appendix A of <https://datatracker.ietf.org/doc/html/rfc8554#appendix-A>
func NewPrivateKeyFromSeed(tc common.LmsAlgorithmType, otstc common.LmsOtsAlgorithmType, id common.ID, seed []byte) (LmsPrivateKey, error) {
	return NewPrivateKeyFromSeedWithAux(tc, otstc, id, seed, nil)
}

// NewPrivateKeyFromSeedWithAux is NewPrivateKeyFromSeed, additionally wiring
// an aux cache that is consulted (and, if still being populated, extended)
// while the root is computed.
func NewPrivateKeyFromSeedWithAux(tc common.LmsAlgorithmType, otstc common.LmsOtsAlgorithmType, id common.ID, seed []byte, aux common.AuxCache) (LmsPrivateKey, error) {
	tc, err := tc.LmsType()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	otstc, err = otstc.LmsOtsType()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	params, err := tc.LmsParams()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	otsparams, err := otstc.Params()
	if err != nil {
		return LmsPrivateKey{}, err
	}

	leaves := uint32(1) << params.H
	root, err := GetTreeElement(1, otstc, otsparams, leaves, id, seed, aux)
	if err != nil {
		return LmsPrivateKey{}, err
	}

	return LmsPrivateKey{
		typecode: tc,
		otstype:  otstc,
		q:        0,
		id:       id,
		seed:     seed,
		root:     root,
		aux:      aux,
	}, nil
}

// Public returns an LmsPublicKey that validates signatures for this private key
func (priv *LmsPrivateKey) Public() LmsPublicKey {
	return LmsPublicKey{
		typecode: priv.typecode,
		otstype:  priv.otstype,
		id:       priv.id,
		k:        priv.root,
	}
}

// Sign calculates the LMS signature of a chosen message.
// The rng argument is optional. If nil is provided, crypto/rand.Reader will be used.
func (priv *LmsPrivateKey) Sign(msg []byte, rng io.Reader) (LmsSignature, error) {
	if rng == nil {
		rng = rand.Reader
	}
	params, err := priv.typecode.LmsParams()
	if err != nil {
		return LmsSignature{}, err
	}
	otsparams, err := priv.otstype.Params()
	if err != nil {
		return LmsSignature{}, err
	}
	height := int(params.H)
	var leaves uint32 = 1 << height
	if priv.q >= leaves {
		return LmsSignature{}, ErrKeyExhausted
	}

	ots_priv, err := ots.NewPrivateKeyFromSeed(priv.otstype, priv.q, priv.id, priv.seed)
	if err != nil {
		return LmsSignature{}, err
	}
	ots_sig, err := ots_priv.Sign(msg, rng)
	if err != nil {
		return LmsSignature{}, err
	}

	// Build the authentication path without materializing the tree: the
	// sibling at level i of leaf (leaves+q) is heap index
	// ((leaves+q) >> i) ^ 1, derived on demand (and, if an aux cache
	// covers it, read straight from the cache).
	authpath := make([][]byte, params.H)
	leafR := leaves + priv.q
	for i := 0; i < height; i++ {
		siblingR := (leafR >> uint(i)) ^ 1
		val, err := GetTreeElement(siblingR, priv.otstype, otsparams, leaves, priv.id, priv.seed, priv.aux)
		if err != nil {
			return LmsSignature{}, err
		}
		authpath[i] = val
	}

	// We only advance q once the leaf's signature has been fully computed:
	// a crash before this point never leaves q advanced with no signature
	// to show for it.
	priv.incrementQ()

	return LmsSignature{
		priv.typecode,
		priv.q - 1,
		ots_sig,
		authpath,
	}, nil
}

// Private
func (priv *LmsPrivateKey) incrementQ() {
	priv.q++
}

// ToBytes() serialized the private key into a byte string for storage.
// The current value of the internal counter, q, is included.
func (priv *LmsPrivateKey) ToBytes() []byte {
	var serialized []byte
	var u32_be [4]byte

	// First 4 bytes: typecode
	typecode, _ := priv.typecode.LmsType()
	// ToBytes() is only ever called on a valid object, so this will never return an error
	binary.BigEndian.PutUint32(u32_be[:], typecode.ToUint32())
	serialized = append(serialized, u32_be[:]...)

	// Next 4 bytes: OTS typecode
	otstype, _ := priv.otstype.LmsOtsType()
	// ToBytes() is only ever called on a valid object, so this will never return an error
	binary.BigEndian.PutUint32(u32_be[:], otstype.ToUint32())
	serialized = append(serialized, u32_be[:]...)

	// Next 4 bytes: q
	binary.BigEndian.PutUint32(u32_be[:], priv.q)
	serialized = append(serialized, u32_be[:]...)

	// Next 16 bytes: id
	serialized = append(serialized, priv.id[:]...)

	// Next M bytes: seed
	serialized = append(serialized, priv.seed[:]...)

	return serialized
}

// Retrieve the current value of the internal counter, q.
// Used for unit tests
func (priv *LmsPrivateKey) Q() uint32 {
	return priv.q
}

// ID returns this tree's identifier.
func (priv *LmsPrivateKey) ID() common.ID {
	return priv.id
}

// Seed returns this tree's seed. Used by lms/hss to derive a child level's
// (seed, I) pair deterministically from its parent's state.
func (priv *LmsPrivateKey) Seed() []byte {
	return priv.seed
}

// Typecode returns this tree's LMS algorithm type.
func (priv *LmsPrivateKey) Typecode() common.LmsAlgorithmType {
	return priv.typecode
}

// OtsTypecode returns this tree's LM-OTS algorithm type.
func (priv *LmsPrivateKey) OtsTypecode() common.LmsOtsAlgorithmType {
	return priv.otstype
}

// LmsPrivateKeyFromBytes returns an LmsPrivateKey that represents b.
// This is the inverse of the ToBytes() method on the LmsPrivateKey object.
func LmsPrivateKeyFromBytes(b []byte) (LmsPrivateKey, error) {
	return LmsPrivateKeyFromBytesWithAux(b, nil)
}

// LmsPrivateKeyFromBytesWithAux is LmsPrivateKeyFromBytes, additionally
// wiring an aux cache used while recomputing the root.
func LmsPrivateKeyFromBytesWithAux(b []byte, aux common.AuxCache) (LmsPrivateKey, error) {
	if len(b) < 8 {
		return LmsPrivateKey{}, errors.New("LmsPrivateKeyFromBytes(): Input is too short")
	}

	// The typecode is bytes 0-3 (4 bytes)
	typecode, err := common.Uint32ToLmsType(binary.BigEndian.Uint32(b[0:4])).LmsType()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	// The OTS typecode is bytes 4-7 (4 bytes)
	otstype, err := common.Uint32ToLmotsType(binary.BigEndian.Uint32(b[4:8])).LmsOtsType()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	lmsparams, err := typecode.LmsParams()
	if err != nil {
		return LmsPrivateKey{}, err
	}
	if len(b) < int(lmsparams.M+28) {
		return LmsPrivateKey{}, errors.New("LmsPrivateKeyFromBytes(): Input is too short")
	}
	if len(b) > int(lmsparams.M+28) {
		return LmsPrivateKey{}, errors.New("LmsPrivateKeyFromBytes(): Input is too long")
	}

	// Internal counter is bytes 8-11 (4 bytes)
	q := binary.BigEndian.Uint32(b[8:12])
	// ID is bytes 12-27 (16 bytes)
	id := common.ID(b[12:28])
	// Seed is the remainder (M bytes)
	seed_end := lmsparams.M + 28
	seed := b[28:seed_end]

	// Load private key, then set q to what was persisted
	privateKey, err := NewPrivateKeyFromSeedWithAux(typecode, otstype, id, seed, aux)
	if err != nil {
		return LmsPrivateKey{}, err
	}
	privateKey.q = q
	return privateKey, nil
}
