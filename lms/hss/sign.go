package hss

import (
	"crypto/rand"
	"io"

	"github.com/trailofbits/hss-go/lms/lms"
)

// leaves returns 2^h for the LMS parameter set ps describes.
func leaves(ps ParamSet) (uint32, error) {
	params, err := ps.Lms.LmsParams()
	if err != nil {
		return 0, err
	}
	return uint32(1) << params.H, nil
}

// Sign produces an HSS signature over msg. It locates the bottom tree and,
// if its leaves are exhausted, walks upward to find the first level with
// spare capacity, refreshing every level below it with a freshly derived
// child before signing the message. rng is optional; nil uses
// crypto/rand.Reader.
func (priv *PrivateKey) Sign(msg []byte, rng io.Reader) (Signature, error) {
	if rng == nil {
		rng = rand.Reader
	}

	L := len(priv.levels)

	i := L - 1
	for i >= 0 {
		cap, err := leaves(priv.params[i])
		if err != nil {
			return Signature{}, err
		}
		if priv.levels[i].Q() < cap {
			break
		}
		i--
	}
	if i < 0 {
		return Signature{}, ErrAllKeysUsed
	}

	for level := i + 1; level < L; level++ {
		parent := &priv.levels[level-1]
		childSeed, childID := deriveChild(level, parent.Seed(), parent.ID(), parent.Q())

		childPriv, err := lms.NewPrivateKeyFromSeed(priv.params[level].Lms, priv.params[level].Ots, childID, childSeed)
		if err != nil {
			return Signature{}, err
		}
		childPub := childPriv.Public()

		sig, err := parent.Sign(childPub.ToBytes(), rng)
		if err != nil {
			return Signature{}, err
		}

		priv.levels[level] = childPriv
		priv.signedPubKeys[level-1] = SignedPublicKey{Signature: sig, PublicKey: childPub}
	}

	bottom := &priv.levels[L-1]
	bottomSig, err := bottom.Sign(msg, rng)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		nspk:          uint32(L - 1),
		signedPubKeys: append([]SignedPublicKey(nil), priv.signedPubKeys...),
		bottom:        bottomSig,
	}, nil
}
