package hss

// Verify checks sig against msg, walking the signature chain from the top
// public key down to the bottom, verifying each parent's signature over
// its child's public key before trusting that child to verify the next
// link (or, at the bottom, the message itself). Any parse or length
// mismatch along the way returns false — there is no partial-success path.
func (pub *PublicKey) Verify(msg []byte, sig Signature) bool {
	if int(sig.nspk)+1 != pub.l {
		return false
	}
	if len(sig.signedPubKeys) != int(sig.nspk) {
		return false
	}

	current := pub.top
	for i := 0; i < int(sig.nspk); i++ {
		spk := sig.signedPubKeys[i]
		if !current.Verify(spk.PublicKey.ToBytes(), spk.Signature) {
			return false
		}
		current = spk.PublicKey
	}

	return current.Verify(msg, sig.bottom)
}
