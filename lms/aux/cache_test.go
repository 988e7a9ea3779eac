package aux_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trailofbits/hss-go/lms/aux"
	"github.com/trailofbits/hss-go/lms/common"
)

func testID() common.ID {
	var id common.ID
	for i := range id {
		id[i] = byte(i)
	}
	return id
}

func TestNewZeroBudgetYieldsAlwaysMissingCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	c, err := aux.New(path, 0, 10, []byte("seed"), testID())
	assert.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, make([]byte, 32))
	assert.NoError(t, c.Finalize())

	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestPutGetRoundTripsAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	// Budget for header + root + mac, nothing more: only level 0 fits.
	c, err := aux.New(path, 4+32+32, 10, []byte("seed"), testID())
	assert.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Populating())

	root := make([]byte, 32)
	for i := range root {
		root[i] = 0xAB
	}
	c.Put(1, root)

	// Level 1 (r=2,3) shouldn't fit the budget; Put on it must be a silent no-op.
	c.Put(2, make([]byte, 32))

	assert.NoError(t, c.Finalize())
	assert.False(t, c.Populating())

	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, root, got)

	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestOpenRoundTripsAcrossProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	seed := []byte("some-seed-material")
	id := testID()

	c, err := aux.New(path, 4+(1+2)*32+32, 10, seed, id)
	assert.NoError(t, err)

	root := make([]byte, 32)
	root[0] = 1
	left := make([]byte, 32)
	left[0] = 2
	right := make([]byte, 32)
	right[0] = 3
	c.Put(1, root)
	c.Put(2, left)
	c.Put(3, right)
	assert.NoError(t, c.Finalize())
	assert.NoError(t, c.Close())

	reopened, err := aux.Open(path, seed, id)
	assert.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get(1)
	assert.True(t, ok)
	assert.Equal(t, root, got)

	got, ok = reopened.Get(2)
	assert.True(t, ok)
	assert.Equal(t, left, got)

	got, ok = reopened.Get(3)
	assert.True(t, ok)
	assert.Equal(t, right, got)
}

func TestOpenRejectsWrongSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	id := testID()

	c, err := aux.New(path, 4+32+32, 10, []byte("seed-a"), id)
	assert.NoError(t, err)
	c.Put(1, make([]byte, 32))
	assert.NoError(t, c.Finalize())
	assert.NoError(t, c.Close())

	_, err = aux.Open(path, []byte("seed-b"), id)
	assert.ErrorIs(t, err, aux.ErrAuxInvalid)
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	id := testID()
	seed := []byte("seed")

	c, err := aux.New(path, 4+32+32, 10, seed, id)
	assert.NoError(t, err)
	assert.NoError(t, c.Finalize())
	assert.NoError(t, c.Close())

	// Drop the last byte of the trailing MAC.
	assert.NoError(t, os.Truncate(path, 4+32+32-1))

	_, err = aux.Open(path, seed, id)
	assert.ErrorIs(t, err, aux.ErrAuxInvalid)
}

func TestPopulatingFalseOnFreshlyOpenedCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.bin")
	id := testID()
	seed := []byte("seed")

	c, err := aux.New(path, 4+32+32, 10, seed, id)
	assert.NoError(t, err)
	assert.NoError(t, c.Finalize())
	assert.NoError(t, c.Close())

	reopened, err := aux.Open(path, seed, id)
	assert.NoError(t, err)
	defer reopened.Close()
	assert.False(t, reopened.Populating())
}
