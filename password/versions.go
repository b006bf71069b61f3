package password

import (
	"fmt"
)

// Versions pins hashers to stored password versions.
//
// The current version's hasher produces every new digest. Retired versions stay
// available for verification so credentials hashed under an older
// configuration keep working until the owner logs in and the caller re-hashes.
// Versions is immutable after [NewVersions].
type Versions struct {
	current int
	live    Hasher
	retired map[int]Hasher
}

// NewVersions builds the live hasher from current and one hasher per retired
// version. A retired entry that reuses the current version number is rejected.
func NewVersions(currentVersion int, current Config, retired map[int]Config) (*Versions, error) {
	live, err := New(current)
	if err != nil {
		return nil, fmt.Errorf("password version %d: %w", currentVersion, err)
	}

	v := &Versions{
		current: currentVersion,
		live:    live,
		retired: make(map[int]Hasher, len(retired)),
	}
	for version, cfg := range retired {
		if version == currentVersion {
			return nil, fmt.Errorf("password version %d is both current and retired", version)
		}
		h, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("password version %d: %w", version, err)
		}
		v.retired[version] = h
	}
	return v, nil
}

// Current returns the live version number and its hasher.
func (v *Versions) Current() (int, Hasher) {
	return v.current, v.live
}

// ForVersion resolves the hasher that produced digests of the given version.
func (v *Versions) ForVersion(version int) (Hasher, error) {
	if version == v.current {
		return v.live, nil
	}
	h, ok := v.retired[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return h, nil
}

// Hash hashes plaintext with the live hasher and reports the version to store.
func (v *Versions) Hash(plaintext string) (Digest, int, error) {
	d, err := v.live.Hash(plaintext)
	if err != nil {
		return Digest{}, 0, err
	}
	return d, v.current, nil
}

// NeedsRehash reports whether a digest of the given version was produced by a
// hasher other than the live one.
func (v *Versions) NeedsRehash(version int) bool {
	return version != v.current
}
