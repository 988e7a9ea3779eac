// This file implements the HSS wire formats: a self-describing public key
// and signature (each LMS sub-structure already carries its own typecode,
// so no external length table is needed), and a fixed private-key blob
// built from each level's lms.LmsPrivateKey serialization (with I moved
// ahead of q) followed by the cached parent signatures over child public
// keys.
package hss

import (
	"encoding/binary"
	"errors"

	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/lms"
)

var errTruncated = errors.New("hss: truncated input")

// ToBytes serializes an HSS public key as L(4) ‖ <LMS public key at top>.
func (pub *PublicKey) ToBytes() []byte {
	var lBe [4]byte
	binary.BigEndian.PutUint32(lBe[:], uint32(pub.l))
	out := append([]byte{}, lBe[:]...)
	out = append(out, pub.top.ToBytes()...)
	return out
}

// PublicKeyFromBytes parses the inverse of (*PublicKey).ToBytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) < 4 {
		return PublicKey{}, errTruncated
	}
	l := binary.BigEndian.Uint32(b[0:4])
	if l < 1 || l > MaxLevels {
		return PublicKey{}, ErrInvalidLevelCount
	}
	top, err := lms.LmsPublicKeyFromBytes(b[4:])
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{l: int(l), top: top}, nil
}

// lmsPublicKeyByteLen peeks the LMS typecode at the start of b to learn how
// many bytes a serialized LMS public key occupies (fixed per typecode:
// M+24), without needing an external length field.
func lmsPublicKeyByteLen(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, errTruncated
	}
	tc, err := common.Uint32ToLmsType(binary.BigEndian.Uint32(b[0:4])).LmsType()
	if err != nil {
		return 0, err
	}
	params, err := tc.LmsParams()
	if err != nil {
		return 0, err
	}
	return int(params.M + 24), nil
}

// lmsSignatureByteLen peeks the embedded OTS and LMS typecodes to learn how
// many bytes a serialized LMS signature occupies, mirroring the length
// arithmetic lms.LmsSignatureFromBytes performs internally.
func lmsSignatureByteLen(b []byte) (int, error) {
	if len(b) < 8 {
		return 0, errTruncated
	}
	otstc, err := common.Uint32ToLmotsType(binary.BigEndian.Uint32(b[4:8])).LmsOtsType()
	if err != nil {
		return 0, err
	}
	otssiglen, err := otstc.LmsOtsSigLength()
	if err != nil {
		return 0, err
	}
	typecodeOffset := 4 + otssiglen
	if uint64(len(b)) < typecodeOffset+4 {
		return 0, errTruncated
	}
	lmstc, err := common.Uint32ToLmsType(binary.BigEndian.Uint32(b[typecodeOffset : typecodeOffset+4])).LmsType()
	if err != nil {
		return 0, err
	}
	siglen, err := lmstc.LmsSigLength(otstc)
	if err != nil {
		return 0, err
	}
	return int(siglen), nil
}

// ToBytes serializes an HSS signature as
// Nspk(4) ‖ (lms_signature ‖ lms_public_key)*Nspk ‖ bottom_lms_signature.
func (sig *Signature) ToBytes() ([]byte, error) {
	var nBe [4]byte
	binary.BigEndian.PutUint32(nBe[:], sig.nspk)
	out := append([]byte{}, nBe[:]...)

	for _, spk := range sig.signedPubKeys {
		sigBytes, err := spk.Signature.ToBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, sigBytes...)
		out = append(out, spk.PublicKey.ToBytes()...)
	}

	bottomBytes, err := sig.bottom.ToBytes()
	if err != nil {
		return nil, err
	}
	out = append(out, bottomBytes...)
	return out, nil
}

// SignatureFromBytes parses the inverse of (*Signature).ToBytes.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) < 4 {
		return Signature{}, errTruncated
	}
	nspk := binary.BigEndian.Uint32(b[0:4])
	pos := 4

	signedPubKeys := make([]SignedPublicKey, 0, nspk)
	for i := uint32(0); i < nspk; i++ {
		siglen, err := lmsSignatureByteLen(b[pos:])
		if err != nil {
			return Signature{}, err
		}
		if pos+siglen > len(b) {
			return Signature{}, errTruncated
		}
		sig, err := lms.LmsSignatureFromBytes(b[pos : pos+siglen])
		if err != nil {
			return Signature{}, err
		}
		pos += siglen

		pklen, err := lmsPublicKeyByteLen(b[pos:])
		if err != nil {
			return Signature{}, err
		}
		if pos+pklen > len(b) {
			return Signature{}, errTruncated
		}
		pub, err := lms.LmsPublicKeyFromBytes(b[pos : pos+pklen])
		if err != nil {
			return Signature{}, err
		}
		pos += pklen

		signedPubKeys = append(signedPubKeys, SignedPublicKey{Signature: sig, PublicKey: pub})
	}

	bottom, err := lms.LmsSignatureFromBytes(b[pos:])
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		nspk:          nspk,
		signedPubKeys: signedPubKeys,
		bottom:        bottom,
	}, nil
}

// typecodeLen and qLen are the fixed widths of the two 4-byte fields each
// per-level private-key record carries; idLen (common.ID_LEN) is the
// fixed width of I. Used by levelToExternalBytes/levelFromExternalBytes
// to swap q and I between lms.LmsPrivateKey's internal field order and
// the order this package's wire format fixes.
const (
	typecodeLen = 4 + 4
	qLen        = 4
)

// levelToExternalBytes serializes one level's LMS private key in the
// order this package's private-key blob fixes for every level:
// lms_typecode(4) ‖ lmots_typecode(4) ‖ I(16) ‖ q(4) ‖ seed(M).
// lms.LmsPrivateKey.ToBytes instead writes q before I (an internal
// convention lms/lms keeps for its own callers and tests); this function
// reorders those same bytes rather than changing that convention, so
// lms/lms's serialization and tests are unaffected by this package's
// external format.
func levelToExternalBytes(lvl *lms.LmsPrivateKey) []byte {
	internal := lvl.ToBytes()
	idLen := int(common.ID_LEN)
	out := make([]byte, len(internal))
	copy(out[0:typecodeLen], internal[0:typecodeLen])
	copy(out[typecodeLen:typecodeLen+idLen], internal[typecodeLen+qLen:typecodeLen+qLen+idLen])
	copy(out[typecodeLen+idLen:typecodeLen+idLen+qLen], internal[typecodeLen:typecodeLen+qLen])
	copy(out[typecodeLen+idLen+qLen:], internal[typecodeLen+qLen+idLen:])
	return out
}

// levelFromExternalBytes is the inverse of levelToExternalBytes: it
// reorders b (I before q) back into lms.LmsPrivateKey's internal layout
// (q before I) before delegating to lms.LmsPrivateKeyFromBytes(WithAux).
func levelFromExternalBytes(b []byte, aux common.AuxCache, withAux bool) (lms.LmsPrivateKey, error) {
	idLen := int(common.ID_LEN)
	internal := make([]byte, len(b))
	copy(internal[0:typecodeLen], b[0:typecodeLen])
	copy(internal[typecodeLen:typecodeLen+qLen], b[typecodeLen+idLen:typecodeLen+idLen+qLen])
	copy(internal[typecodeLen+qLen:typecodeLen+qLen+idLen], b[typecodeLen:typecodeLen+idLen])
	copy(internal[typecodeLen+qLen+idLen:], b[typecodeLen+idLen+qLen:])
	if withAux {
		return lms.LmsPrivateKeyFromBytesWithAux(internal, aux)
	}
	return lms.LmsPrivateKeyFromBytes(internal)
}

// ToBytes serializes an HSS private key as
// L(4) ‖ (lms_typecode(4) ‖ lmots_typecode(4) ‖ I(16) ‖ q(4) ‖ seed(M))*L
// ‖ (lms_signature ‖ lms_public_key)*(L-1). The trailing block exists
// because without it, reloading a key from disk would have no way to
// recover a parent's already-produced signature over its child's public
// key short of re-signing — which would burn a fresh, different leaf
// than the one originally used.
func (priv *PrivateKey) ToBytes() ([]byte, error) {
	var lBe [4]byte
	binary.BigEndian.PutUint32(lBe[:], uint32(len(priv.levels)))
	out := append([]byte{}, lBe[:]...)
	for i := range priv.levels {
		out = append(out, levelToExternalBytes(&priv.levels[i])...)
	}
	for i := range priv.signedPubKeys {
		sigBytes, err := priv.signedPubKeys[i].Signature.ToBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, sigBytes...)
		out = append(out, priv.signedPubKeys[i].PublicKey.ToBytes()...)
	}
	return out, nil
}

// PrivateKeyFromBytes parses the inverse of (*PrivateKey).ToBytes. aux, if
// non-nil, is wired to the top (level 0) tree only, matching keygen.
func PrivateKeyFromBytes(b []byte, params []ParamSet, aux common.AuxCache) (PrivateKey, error) {
	if len(b) < 4 {
		return PrivateKey{}, errTruncated
	}
	l := binary.BigEndian.Uint32(b[0:4])
	if l < 1 || l > MaxLevels {
		return PrivateKey{}, ErrInvalidLevelCount
	}
	if int(l) != len(params) {
		return PrivateKey{}, errors.New("hss: level count does not match supplied parameter list")
	}

	levels := make([]lms.LmsPrivateKey, l)
	pos := 4
	for i := uint32(0); i < l; i++ {
		if pos+4 > len(b) {
			return PrivateKey{}, errTruncated
		}
		tc, err := common.Uint32ToLmsType(binary.BigEndian.Uint32(b[pos : pos+4])).LmsType()
		if err != nil {
			return PrivateKey{}, err
		}
		lmsparams, err := tc.LmsParams()
		if err != nil {
			return PrivateKey{}, err
		}
		levelLen := int(lmsparams.M + 28)
		if pos+levelLen > len(b) {
			return PrivateKey{}, errTruncated
		}

		lvl, err := levelFromExternalBytes(b[pos:pos+levelLen], aux, i == 0)
		if err != nil {
			return PrivateKey{}, err
		}
		levels[i] = lvl
		pos += levelLen
	}
	signedPubKeys := make([]SignedPublicKey, l-1)
	for i := uint32(0); i+1 < l; i++ {
		siglen, err := lmsSignatureByteLen(b[pos:])
		if err != nil {
			return PrivateKey{}, err
		}
		if pos+siglen > len(b) {
			return PrivateKey{}, errTruncated
		}
		sig, err := lms.LmsSignatureFromBytes(b[pos : pos+siglen])
		if err != nil {
			return PrivateKey{}, err
		}
		pos += siglen

		pklen, err := lmsPublicKeyByteLen(b[pos:])
		if err != nil {
			return PrivateKey{}, err
		}
		if pos+pklen > len(b) {
			return PrivateKey{}, errTruncated
		}
		pub, err := lms.LmsPublicKeyFromBytes(b[pos : pos+pklen])
		if err != nil {
			return PrivateKey{}, err
		}
		pos += pklen

		signedPubKeys[i] = SignedPublicKey{Signature: sig, PublicKey: pub}
	}
	if pos != len(b) {
		return PrivateKey{}, errors.New("hss: trailing bytes after last level")
	}

	priv := PrivateKey{
		params:        append([]ParamSet(nil), params...),
		levels:        levels,
		signedPubKeys: signedPubKeys,
	}
	return priv, nil
}
