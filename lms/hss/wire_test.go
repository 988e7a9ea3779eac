package hss_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/hss"
)

// TestPrivateKeyWireFieldOrder pins the absolute byte offsets of I and q
// within a serialized single-level HSS private key: after the 4-byte
// level count and the two 4-byte typecodes, I occupies bytes [12:28] and
// q the following 4 bytes [28:32] — I before q, not the other way around.
func TestPrivateKeyWireFieldOrder(t *testing.T) {
	seed, id := testSeedAndID(0x09)
	params := []hss.ParamSet{{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8}}

	priv, _, err := hss.GenerateKeyPair(params, seed, id, nil, nil)
	assert.NoError(t, err)

	_, err = priv.Sign([]byte("advance q"), nil)
	assert.NoError(t, err)

	b, err := priv.ToBytes()
	assert.NoError(t, err)

	const (
		lLen         = 4
		typecodesLen = 4 + 4
		idLen        = 16
		qLen         = 4
	)
	idStart := lLen + typecodesLen
	qStart := idStart + idLen

	_, wantID := priv.TopSeedAndID()
	assert.Equal(t, wantID[:], b[idStart:idStart+idLen])

	gotQ := binary.BigEndian.Uint32(b[qStart : qStart+qLen])
	assert.Equal(t, uint32(1), gotQ)

	seedStart := qStart + qLen
	wantSeed, _ := priv.TopSeedAndID()
	assert.Equal(t, wantSeed, b[seedStart:seedStart+len(wantSeed)])
}
