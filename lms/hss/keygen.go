package hss

import (
	"encoding/binary"
	"io"

	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/lms"
)

var (
	domainChildSeed = [8]byte{'h', 's', 's', '-', 's', 'e', 'e', 'd'}
	domainChildID   = [8]byte{'h', 's', 's', '-', '-', '-', 'i', 'd'}
)

// deriveChild computes a new (seed, I) pair for the level below parentSeed
// / parentID, deterministically from the parent's state and the parent
// leaf index (qUsed) that will sign the new child's public key. This is
// the "derive-don't-store" discipline: no extra entropy is drawn and no
// extra state is persisted beyond what the parent already carries.
func deriveChild(level int, parentSeed []byte, parentID common.ID, qUsed uint32) ([]byte, common.ID) {
	var lvlBe, qBe [4]byte
	binary.BigEndian.PutUint32(lvlBe[:], uint32(level))
	binary.BigEndian.PutUint32(qBe[:], qUsed)

	seedHasher := common.Sha256Hasher{}.New()
	common.HashWrite(seedHasher, parentSeed)
	common.HashWrite(seedHasher, parentID[:])
	common.HashWrite(seedHasher, lvlBe[:])
	common.HashWrite(seedHasher, qBe[:])
	common.HashWrite(seedHasher, domainChildSeed[:])
	seed := common.HashSum(seedHasher, 32)

	idHasher := common.Sha256Hasher{}.New()
	common.HashWrite(idHasher, parentSeed)
	common.HashWrite(idHasher, parentID[:])
	common.HashWrite(idHasher, lvlBe[:])
	common.HashWrite(idHasher, qBe[:])
	common.HashWrite(idHasher, domainChildID[:])
	idBytes := common.HashSum(idHasher, uint64(common.ID_LEN))

	var id common.ID
	copy(id[:], idBytes)
	return seed, id
}

// GenerateKeyPair builds an L-level HSS hierarchy from a single root seed
// and ID, one LMS key pair per entry of params (top to bottom). Each
// parent immediately signs its child's (freshly derived) public key, the
// same as the first descent a cascade performs during signing. aux, if
// non-nil, is attached only to the top-level tree: lower trees are cheap
// enough to rebuild from scratch on every refresh.
func GenerateKeyPair(params []ParamSet, rootSeed []byte, rootID common.ID, aux common.AuxCache, rng io.Reader) (PrivateKey, PublicKey, error) {
	L := len(params)
	if L < 1 || L > MaxLevels {
		return PrivateKey{}, PublicKey{}, ErrInvalidLevelCount
	}

	levels := make([]lms.LmsPrivateKey, L)
	signedPubKeys := make([]SignedPublicKey, L-1)

	seed := rootSeed
	id := rootID
	for level := 0; level < L; level++ {
		var priv lms.LmsPrivateKey
		var err error
		if level == 0 {
			priv, err = lms.NewPrivateKeyFromSeedWithAux(params[0].Lms, params[0].Ots, id, seed, aux)
		} else {
			priv, err = lms.NewPrivateKeyFromSeed(params[level].Lms, params[level].Ots, id, seed)
		}
		if err != nil {
			return PrivateKey{}, PublicKey{}, err
		}
		levels[level] = priv

		if level > 0 {
			childPub := priv.Public()
			sig, err := levels[level-1].Sign(childPub.ToBytes(), rng)
			if err != nil {
				return PrivateKey{}, PublicKey{}, err
			}
			signedPubKeys[level-1] = SignedPublicKey{Signature: sig, PublicKey: childPub}
		}

		if level < L-1 {
			seed, id = deriveChild(level+1, priv.Seed(), priv.ID(), 0)
		}
	}

	priv := PrivateKey{
		params:        append([]ParamSet(nil), params...),
		levels:        levels,
		signedPubKeys: signedPubKeys,
	}
	return priv, priv.Public(), nil
}
