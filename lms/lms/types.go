package lms

import (
	"github.com/trailofbits/hss-go/lms/common"
	"github.com/trailofbits/hss-go/lms/ots"
)

// A LmsPrivateKey is used to sign a finite number of messages.
//
// The 2^h one-time keys are never materialized as a whole: only the
// Merkle root (needed for Public()) is cached, and authentication paths
// are derived on demand, optionally assisted by an aux cache (see
// package aux).
type LmsPrivateKey struct {
	typecode common.LmsAlgorithmType
	otstype  common.LmsOtsAlgorithmType
	q        uint32
	id       common.ID
	seed     []byte
	root     []byte
	aux      common.AuxCache
}

// A LmsPublicKey is used to verify messages signed by a LmsPrivateKey
type LmsPublicKey struct {
	typecode common.LmsAlgorithmType
	otstype  common.LmsOtsAlgorithmType
	id       common.ID
	k        []byte
}

// A LmsSignature represents a signature produced by an LmsPrivateKey
// which an LmsPublicKey can validate for a given message
type LmsSignature struct {
	typecode common.LmsAlgorithmType
	q        uint32
	ots      ots.LmsOtsSignature
	path     [][]byte
}
