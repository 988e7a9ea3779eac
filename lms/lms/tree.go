// Package lms implements Leighton-Micali Hash-Based Signatures (RFC 8554)
//
// This file computes individual Merkle tree nodes on demand, rather than
// materializing the whole 2^(h+1)-1 node array up front the way the
// original teacher implementation did. This is what makes h=25 trees
// practical, and it is the hook an aux cache attaches to.
package lms

import (
	"encoding/binary"

	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/ots"
)

// GetTreeElement computes the value of the Merkle tree node at heap index r
// (1-indexed; the root is r=1), deriving LM-OTS keys on demand from
// (seed, id) rather than reading a precomputed tree.
//
// If aux has the node cached, that value is returned directly without
// recursing. If aux is populating (see common.AuxCache.Populating), newly
// derived nodes are written back into it as the recursion unwinds, so a
// single top-down call during key generation populates every level the
// aux cache's byte budget can hold.
func GetTreeElement(
	r uint32,
	otstc common.LmsOtsAlgorithmType,
	otsparams common.LmsOtsParam,
	leaves uint32,
	id common.ID,
	seed []byte,
	aux common.AuxCache,
) ([]byte, error) {
	if aux != nil {
		if v, ok := aux.Get(r); ok {
			return v, nil
		}
	}

	var rBe [4]byte
	binary.BigEndian.PutUint32(rBe[:], r)
	hasher := otsparams.H.New()

	var result []byte
	if r >= leaves {
		otsPriv, err := ots.NewPrivateKeyFromSeed(otstc, r-leaves, id, seed)
		if err != nil {
			return nil, err
		}
		otsPub, err := otsPriv.Public()
		if err != nil {
			return nil, err
		}

		common.HashWrite(hasher, id[:])
		common.HashWrite(hasher, rBe[:])
		common.HashWrite(hasher, common.D_LEAF[:])
		common.HashWrite(hasher, otsPub.Key())
		result = common.HashSum(hasher, otsparams.N)
	} else {
		left, err := GetTreeElement(2*r, otstc, otsparams, leaves, id, seed, aux)
		if err != nil {
			return nil, err
		}
		right, err := GetTreeElement(2*r+1, otstc, otsparams, leaves, id, seed, aux)
		if err != nil {
			return nil, err
		}

		common.HashWrite(hasher, id[:])
		common.HashWrite(hasher, rBe[:])
		common.HashWrite(hasher, common.D_INTR[:])
		common.HashWrite(hasher, left)
		common.HashWrite(hasher, right)
		result = common.HashSum(hasher, otsparams.N)
	}

	if aux != nil && aux.Populating() {
		aux.Put(r, result)
	}

	return result, nil
}
