// Package container implements on-disk private-key file discipline: an
// advisory lock for the lifetime of a signing call, and a
// write-new-state/fsync/rename two-phase commit so a crash between
// computing a signature and persisting its advanced state never releases
// a signature whose leaf-consumption went unrecorded.
//
// Grounded on github.com/bwesterb/go-xmssmt's fsContainer: the same
// lockfile-plus-atomic-rename shape, adapted from XMSS^MT's subtree cache
// file to an HSS private-key blob.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/nightlyone/lockfile"

	"github.com/trailofbits/hss-go/internal/logging"
	"github.com/trailofbits/hss-go/lms/aux"
	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/hss"
)

// ErrLocked is returned by Open when another process already holds the
// lock on this private key file: concurrent signing against one on-disk
// key must be prevented at a higher layer, and this gives that layer a
// concrete primitive to detect contention with.
var ErrLocked = errors.New("container: private key is locked by another process")

// FS is a private-key file guarded by a sibling lockfile.
type FS struct {
	path   string
	lock   lockfile.Lockfile
	params []hss.ParamSet
	aux    common.AuxCache
	closed bool
}

// Open acquires the lock on path and returns a handle to it. It does not
// require path to already exist: callers generating a brand new key still
// go through Open so the lock is held across the initial Save.
func Open(path string, params []hss.ParamSet, aux common.AuxCache) (*FS, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("container: failed to resolve %s: %w", path, err)
	}

	lockPath := abs + ".lock"
	lock, err := lockfile.New(lockPath)
	if err != nil {
		return nil, fmt.Errorf("container: failed to create lockfile %s: %w", lockPath, err)
	}

	if err := lock.TryLock(); err != nil {
		if _, ok := err.(interface{ Temporary() bool }); ok {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("container: failed to lock %s: %w", lockPath, err)
	}

	logging.L().Debug().Str("path", abs).Msg("container: opened")
	return &FS{path: abs, lock: lock, params: params, aux: aux}, nil
}

// OpenWithAuxFile is Open, additionally reopening the aux cache at auxPath
// (if it exists) and binding it to the key's top-level tree. The key file
// is loaded once, ahead of the caller, purely to recover the (seed, I)
// pair aux.Open validates the cache's MAC against; this does not count as
// the caller's own Load/CommitSign.
//
// A corrupted or mismatched aux file is never fatal: per aux.Open's
// contract, OpenWithAuxFile logs a warning and returns the key opened
// exactly as Open would with a nil aux, so signing proceeds by rebuilding
// the tree from scratch.
func OpenWithAuxFile(path, auxPath string, params []hss.ParamSet) (*FS, error) {
	fsys, err := Open(path, params, nil)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(auxPath); err != nil {
		return fsys, nil
	}

	priv, err := fsys.Load()
	if err != nil {
		fsys.Close()
		return nil, err
	}
	seed, id := priv.TopSeedAndID()

	ac, err := aux.Open(auxPath, seed, id)
	if err != nil {
		if errors.Is(err, aux.ErrAuxInvalid) {
			logging.L().Warn().Str("path", auxPath).Msg("container: ignoring aux cache")
			return fsys, nil
		}
		fsys.Close()
		return nil, err
	}

	fsys.aux = ac
	return fsys, nil
}

// Load reads and parses the private key currently on disk.
func (fs *FS) Load() (hss.PrivateKey, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		return hss.PrivateKey{}, fmt.Errorf("container: failed to read %s: %w", fs.path, err)
	}
	return hss.PrivateKeyFromBytes(b, fs.params, fs.aux)
}

// Save writes priv to disk via the two-phase commit (temp file, fsync,
// rename). Used directly only at key-creation time; CommitSign is the
// signing-time equivalent.
func (fs *FS) Save(priv *hss.PrivateKey) error {
	b, err := priv.ToBytes()
	if err != nil {
		return err
	}
	return fs.writeState(b)
}

// CommitSign loads the current private key, signs msg with it, persists
// the mutated state, and only then returns the signature. A crash before
// the state hits disk never surfaces a signature whose leaf consumption
// isn't recorded; a crash after fsync but before rename is recoverable
// (the .tmp file is a strict successor of the old state).
func (fs *FS) CommitSign(msg []byte, rng io.Reader) (hss.Signature, error) {
	priv, err := fs.Load()
	if err != nil {
		return hss.Signature{}, err
	}

	sig, err := priv.Sign(msg, rng)
	if err != nil {
		return hss.Signature{}, err
	}

	if err := fs.Save(&priv); err != nil {
		return hss.Signature{}, fmt.Errorf("container: signature computed but state not committed, refusing to release it: %w", err)
	}

	logging.L().Debug().Str("path", fs.path).Msg("container: signature committed")
	return sig, nil
}

func (fs *FS) writeState(b []byte) error {
	tmpPath := fs.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("container: failed to create temp state %s: %w", tmpPath, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("container: failed to write temp state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("container: failed to sync temp state: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("container: failed to close temp state: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("container: failed to replace %s: %w", fs.path, err)
	}

	dir, err := os.Open(filepath.Dir(fs.path))
	if err != nil {
		return fmt.Errorf("container: failed to sync parent directory: %w", err)
	}
	defer dir.Close()
	return dir.Sync()
}

// Close releases the lock on the private key file, also closing the aux
// cache if one is attached.
func (fs *FS) Close() error {
	if fs.closed {
		return nil
	}
	fs.closed = true

	var result *multierror.Error
	if closer, ok := fs.aux.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("container: failed to close aux cache: %w", err))
		}
	}
	if err := fs.lock.Unlock(); err != nil {
		result = multierror.Append(result, fmt.Errorf("container: failed to release lock on %s: %w", fs.path, err))
	}
	logging.L().Debug().Str("path", fs.path).Msg("container: closed")
	return result.ErrorOrNil()
}
