package hss_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/hss"
)

func testSeedAndID(tag byte) ([]byte, common.ID) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = tag
	}
	var id common.ID
	for i := range id {
		id[i] = tag + 1
	}
	return seed, id
}

func twoLevelParams() []hss.ParamSet {
	return []hss.ParamSet{
		{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8},
		{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8},
	}
}

func TestSingleLevelSignAndVerify(t *testing.T) {
	seed, id := testSeedAndID(0x01)
	params := []hss.ParamSet{{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8}}

	priv, pub, err := hss.GenerateKeyPair(params, seed, id, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, priv.L())

	msg := []byte("a message signed exactly once")
	sig, err := priv.Sign(msg, nil)
	assert.NoError(t, err)

	assert.True(t, pub.Verify(msg, sig))
	assert.False(t, pub.Verify([]byte("a different message"), sig))
}

func TestWireRoundTrip(t *testing.T) {
	seed, id := testSeedAndID(0x02)
	params := twoLevelParams()

	priv, pub, err := hss.GenerateKeyPair(params, seed, id, nil, nil)
	assert.NoError(t, err)

	msg := []byte("round trip me")
	sig, err := priv.Sign(msg, nil)
	assert.NoError(t, err)

	pubBytes := pub.ToBytes()
	pub2, err := hss.PublicKeyFromBytes(pubBytes)
	assert.NoError(t, err)
	assert.Equal(t, pub2.L(), pub.L())

	sigBytes, err := sig.ToBytes()
	assert.NoError(t, err)
	sig2, err := hss.SignatureFromBytes(sigBytes)
	assert.NoError(t, err)

	assert.True(t, pub2.Verify(msg, sig2))

	privBytes, err := priv.ToBytes()
	assert.NoError(t, err)
	priv2, err := hss.PrivateKeyFromBytes(privBytes, params, nil)
	assert.NoError(t, err)

	msg2 := []byte("signed after reload")
	sig3, err := priv2.Sign(msg2, nil)
	assert.NoError(t, err)
	assert.True(t, pub2.Verify(msg2, sig3))
}

// TestTwoLevelCascade exercises an L=2 hierarchy with both trees h=5,w=1,
// signing enough distinct messages to force repeated bottom-tree
// exhaustion and cascade refresh, checking every signature still verifies
// under the one HSS public key.
func TestTwoLevelCascade(t *testing.T) {
	seed, id := testSeedAndID(0x03)
	params := []hss.ParamSet{
		{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W1},
		{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W1},
	}

	priv, pub, err := hss.GenerateKeyPair(params, seed, id, nil, nil)
	assert.NoError(t, err)

	const total = 1024 // 32 leaves at the bottom level * 32 bottom trees
	for i := 0; i < total; i++ {
		msg := []byte{byte(i >> 8), byte(i)}
		sig, err := priv.Sign(msg, nil)
		assert.NoError(t, err, "sign #%d", i)
		assert.True(t, pub.Verify(msg, sig), "verify #%d", i)
	}

	_, err = priv.Sign([]byte("one too many"), nil)
	assert.ErrorIs(t, err, hss.ErrAllKeysUsed)
}

func TestInvalidLevelCount(t *testing.T) {
	seed, id := testSeedAndID(0x04)
	_, _, err := hss.GenerateKeyPair(nil, seed, id, nil, nil)
	assert.ErrorIs(t, err, hss.ErrInvalidLevelCount)
}

func TestVerifyRejectsWrongLevelCount(t *testing.T) {
	seed, id := testSeedAndID(0x05)
	priv, pub, err := hss.GenerateKeyPair(twoLevelParams(), seed, id, nil, nil)
	assert.NoError(t, err)

	msg := []byte("msg")
	sig, err := priv.Sign(msg, nil)
	assert.NoError(t, err)

	singlePriv, singlePub, err := hss.GenerateKeyPair(
		[]hss.ParamSet{{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8}},
		seed, id, nil, nil,
	)
	assert.NoError(t, err)
	_ = singlePriv

	assert.False(t, singlePub.Verify(msg, sig))
	assert.True(t, pub.Verify(msg, sig))
}
