// Package aux implements an on-disk, memory-mapped auxiliary tree cache:
// a persistent memoization of the upper levels of one LMS Merkle tree,
// bounded to a caller-chosen byte budget, bound to a specific (seed, I)
// pair by a MAC so a stale or corrupted cache is never silently trusted.
//
// The mmap-backed layout and lock-adjacent lifecycle (open, validate,
// fall back to "no cache" on mismatch) follow
// github.com/bwesterb/go-xmssmt's fsContainer cache file, adapted from
// its per-subtree slot table to the flat level-mask layout the scheme
// calls for.
package aux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"os"

	"github.com/edsrzf/mmap-go"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/trailofbits/hss-go/internal/logging"
	"github.com/trailofbits/hss-go/lms/common"
)

// ErrAuxInvalid is returned by Open when the cache's MAC does not match its
// contents (corruption, wrong key, or truncation). This is never fatal:
// the caller is expected to proceed as though no aux cache existed at all.
var ErrAuxInvalid = errors.New("aux: cache MAC mismatch or malformed file")

const (
	headerSize = 4  // level_mask
	macSize    = 32 // H(seed || I || packed_hashes)
	nodeSize   = 32
	maxLevels  = 32 // level_mask is a uint32
)

// Cache is a persistent, memory-mapped cache of the upper levels of one LMS
// Merkle tree. Levels are counted from the root (level 0 = root); a cache
// always materializes a whole prefix of complete levels, never a partial
// one.
//
// Cache implements common.AuxCache, so an *lms.LmsPrivateKey can use it
// directly.
type Cache struct {
	file       *os.File
	mapped     mmap.MMap
	levelMask  uint32
	maxLevel   int // highest level index included, inclusive; -1 if none
	populating bool
	seed       []byte
	id         common.ID
}

// New creates (or truncates) the aux file at path, sized so that as many
// complete levels, counted from the root, fit within budgetBytes as the
// tree's height allows. The cache starts in "populating" mode: Put calls
// succeed and Get calls always miss until Finalize is called.
//
// A budgetBytes of 0 (or too small for even the root) yields a valid,
// always-missing cache — equivalent to having no aux cache at all, the
// degenerate case of zero levels fitting the "as many as fit, never
// partial" rule.
func New(path string, budgetBytes int, treeHeight uint32, seed []byte, id common.ID) (*Cache, error) {
	maxLevel := -1
	nodesSoFar := 0
	for level := 0; level < maxLevels && uint32(level) <= treeHeight; level++ {
		nodesSoFar += 1 << uint(level)
		if headerSize+nodesSoFar*nodeSize+macSize > budgetBytes {
			break
		}
		maxLevel = level
	}

	nodeCount := 0
	if maxLevel >= 0 {
		nodeCount = (1 << uint(maxLevel+1)) - 1
	}
	fileSize := headerSize + nodeCount*nodeSize + macSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("aux: failed to create %s: %w", path, err)
	}
	if err := f.Truncate(int64(fileSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("aux: failed to size %s: %w", path, err)
	}

	var mapped mmap.MMap
	if fileSize > 0 {
		mapped, err = mmap.Map(f, mmap.RDWR, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("aux: failed to mmap %s: %w", path, err)
		}
	}

	c := &Cache{
		file:       f,
		mapped:     mapped,
		levelMask:  0,
		maxLevel:   maxLevel,
		populating: true,
		seed:       seed,
		id:         id,
	}
	logging.L().Debug().Str("path", path).Int("max_level", maxLevel).Msg("aux: cache created")
	return c, nil
}

// Open loads an existing aux file, validating its MAC against (seed, id).
// If the MAC does not match, or the file is too short to contain a
// well-formed header and trailer, Open returns ErrAuxInvalid: the caller
// should treat this exactly as if path did not exist.
func Open(path string, seed []byte, id common.ID) (*Cache, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("aux: failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("aux: failed to stat %s: %w", path, err)
	}
	if info.Size() < headerSize+macSize {
		f.Close()
		return nil, ErrAuxInvalid
	}

	var mapped mmap.MMap
	if info.Size() > 0 {
		mapped, err = mmap.Map(f, mmap.RDWR, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("aux: failed to mmap %s: %w", path, err)
		}
	}

	c := &Cache{
		file:       f,
		mapped:     mapped,
		populating: false,
		seed:       seed,
		id:         id,
	}
	c.levelMask = binary.BigEndian.Uint32(mapped[0:headerSize])
	c.maxLevel = highestSetBit(c.levelMask)

	if err := c.validate(); err != nil {
		logging.L().Warn().Err(err).Str("path", path).Msg("aux: rejecting cache")
		c.Close()
		return nil, ErrAuxInvalid
	}

	return c, nil
}

func highestSetBit(mask uint32) int {
	if mask == 0 {
		return -1
	}
	return bits.Len32(mask) - 1
}

// validate recomputes the MAC and cross-checks every included level's
// region is actually present in the mapped file. Every independent failure
// is collected so the log records the full picture, even though the
// caller only ever sees the single ErrAuxInvalid sentinel.
func (c *Cache) validate() error {
	var result *multierror.Error

	bodyLen := 0
	for level := 0; level <= c.maxLevel; level++ {
		if c.levelMask&(1<<uint(level)) == 0 {
			result = multierror.Append(result, fmt.Errorf("level %d missing from a mask implying it should be present", level))
			continue
		}
		bodyLen += 1 << uint(level)
	}
	bodyBytes := bodyLen * nodeSize

	if headerSize+bodyBytes+macSize != len(c.mapped) {
		result = multierror.Append(result, fmt.Errorf("cache size %d does not match mask-implied size %d", len(c.mapped), headerSize+bodyBytes+macSize))
		return result.ErrorOrNil()
	}

	body := c.mapped[headerSize : headerSize+bodyBytes]
	expected := c.computeMAC(body)
	actual := c.mapped[headerSize+bodyBytes : headerSize+bodyBytes+macSize]
	if !hmacEqual(expected, actual) {
		result = multierror.Append(result, errors.New("MAC mismatch"))
	}

	return result.ErrorOrNil()
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func (c *Cache) computeMAC(body []byte) []byte {
	hasher := common.Sha256Hasher{}.New()
	common.HashWrite(hasher, c.seed)
	common.HashWrite(hasher, c.id[:])
	common.HashWrite(hasher, body)
	return hasher.Sum(nil)
}

// offsetFor returns the byte offset of node r within the mapped file, and
// whether r's level is one this cache materializes at all.
func (c *Cache) offsetFor(r uint32) (int, bool) {
	level := bits.Len32(r) - 1
	if level < 0 || level > c.maxLevel {
		return 0, false
	}
	index := r - (1 << uint(level))
	levelStart := (1 << uint(level)) - 1 // nodes in levels 0..level-1
	return headerSize + (levelStart+int(index))*nodeSize, true
}

// Get implements common.AuxCache.
func (c *Cache) Get(r uint32) ([]byte, bool) {
	if c.populating {
		return nil, false
	}
	off, ok := c.offsetFor(r)
	if !ok {
		return nil, false
	}
	if c.levelMask&(1<<uint(bits.Len32(r)-1)) == 0 {
		return nil, false
	}
	out := make([]byte, nodeSize)
	copy(out, c.mapped[off:off+nodeSize])
	return out, true
}

// Put implements common.AuxCache. It is a no-op once the cache has been
// finalized, and a no-op for any node below the materialized boundary.
func (c *Cache) Put(r uint32, value []byte) {
	if !c.populating {
		return
	}
	off, ok := c.offsetFor(r)
	if !ok {
		return
	}
	copy(c.mapped[off:off+nodeSize], value)
}

// Populating implements common.AuxCache.
func (c *Cache) Populating() bool {
	return c.populating
}

// Finalize marks every level up to maxLevel present, writes the MAC, and
// flushes the mapping to disk. Call this exactly once, after the initial
// root computation (the one full top-down tree walk) has completed — the
// cache is populated during that walk and never extended afterward.
func (c *Cache) Finalize() error {
	if !c.populating {
		return nil
	}
	if c.maxLevel < 0 {
		c.levelMask = 0
	} else {
		c.levelMask = (uint32(1) << uint(c.maxLevel+1)) - 1
	}
	binary.BigEndian.PutUint32(c.mapped[0:headerSize], c.levelMask)

	bodyBytes := 0
	if c.maxLevel >= 0 {
		bodyBytes = ((1 << uint(c.maxLevel+1)) - 1) * nodeSize
	}
	body := c.mapped[headerSize : headerSize+bodyBytes]
	mac := c.computeMAC(body)
	copy(c.mapped[headerSize+bodyBytes:headerSize+bodyBytes+macSize], mac)

	c.populating = false
	if c.mapped != nil {
		if err := c.mapped.Flush(); err != nil {
			return fmt.Errorf("aux: failed to flush cache: %w", err)
		}
	}
	return nil
}

// Close unmaps and closes the backing file.
func (c *Cache) Close() error {
	var result *multierror.Error
	if c.mapped != nil {
		if err := c.mapped.Unmap(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.file != nil {
		if err := c.file.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
