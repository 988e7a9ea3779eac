package hss_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trailofbits/hss-go/lms/aux"
	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/hss"
)

// constReader is a deterministic io.Reader standing in for crypto/rand.Reader
// so two independently-constructed keys produce byte-identical signatures
// given identical (seed, I, q, message) — real randomness would make such
// comparisons meaningless.
type constReader byte

func (r constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

// TestAuxCachePresenceDoesNotChangeOutput exercises the aux cache through
// the real lms/hss signing path: a key generated with a top-level aux
// cache must produce the same public key and the same signatures (given
// the same deterministic randomizer) as one generated with none at all.
func TestAuxCachePresenceDoesNotChangeOutput(t *testing.T) {
	seed, id := testSeedAndID(0x10)
	params := []hss.ParamSet{{Lms: common.LMS_SHA256_M32_H5, Ots: common.LMOTS_SHA256_N32_W8}}

	privNoAux, pubNoAux, err := hss.GenerateKeyPair(params, seed, id, nil, constReader(0x42))
	assert.NoError(t, err)

	ac, err := aux.New(filepath.Join(t.TempDir(), "top.aux"), 2000, 5, seed, id)
	assert.NoError(t, err)
	privWithAux, pubWithAux, err := hss.GenerateKeyPair(params, seed, id, ac, constReader(0x42))
	assert.NoError(t, err)
	assert.NoError(t, ac.Finalize())
	defer ac.Close()

	assert.Equal(t, pubNoAux.ToBytes(), pubWithAux.ToBytes())

	msg := []byte("identical under aux or not")
	sigNoAux, err := privNoAux.Sign(msg, constReader(0x07))
	assert.NoError(t, err)
	sigWithAux, err := privWithAux.Sign(msg, constReader(0x07))
	assert.NoError(t, err)

	bNoAux, err := sigNoAux.ToBytes()
	assert.NoError(t, err)
	bWithAux, err := sigWithAux.ToBytes()
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(bNoAux, bWithAux))
}
