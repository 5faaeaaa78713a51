package order

import (
	"encoding/binary"
	"math"
	"sort"

	"sol-backend/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
)

// SeedSize is the length of a randomization seed in bytes.
const SeedSize = chacha20.KeySize

// Move returns a copy of ids with the element at from moved to position to (0-based), shifting the
// others. It is the drag-and-drop step the client runs before committing with SetOrder.
func Move(ids []uuid.UUID, from, to int) ([]uuid.UUID, error) {
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "move %d->%d is outside 0..%d", from, to, len(ids)-1)
	}
	out := make([]uuid.UUID, 0, len(ids))
	moved := ids[from]
	for i, id := range ids {
		if i != from {
			out = append(out, id)
		}
	}
	out = append(out[:to], append([]uuid.UUID{moved}, out[to:]...)...)
	return out, nil
}

// ValidatePermutation checks that ids is a bijection onto the participant set.
func ValidatePermutation(solID uuid.UUID, participants []domain.Participant, ids []uuid.UUID) error {
	if len(ids) != len(participants) {
		return domain.NewError(domain.ErrInvalidOrder, solID.String(),
			"order lists %d participants, sol has %d", len(ids), len(participants))
	}
	known := make(map[uuid.UUID]bool, len(participants))
	for _, p := range participants {
		known[p.ParticipantID] = true
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return domain.NewError(domain.ErrInvalidOrder, id.String(), "participant is not a member of this sol")
		}
		if seen[id] {
			return domain.NewError(domain.ErrInvalidOrder, id.String(), "participant listed twice")
		}
		seen[id] = true
	}
	return nil
}

// IsGapless reports whether the participants' ordre values are exactly {1..N}.
func IsGapless(participants []domain.Participant) bool {
	seen := make([]bool, len(participants)+1)
	for _, p := range participants {
		if p.Ordre < 1 || p.Ordre > len(participants) || seen[p.Ordre] {
			return false
		}
		seen[p.Ordre] = true
	}
	return true
}

// ShuffleBase is the canonical input order of a randomization: join time, then participant id.
func ShuffleBase(participants []domain.Participant) []uuid.UUID {
	ps := make([]domain.Participant, len(participants))
	copy(ps, participants)
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		}
		return ps[i].ParticipantID.String() < ps[j].ParticipantID.String()
	})
	ids := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		ids[i] = p.ParticipantID
	}
	return ids
}

// Shuffle is a Fisher-Yates shuffle of ids driven by a ChaCha20 keystream keyed by seed. The same
// seed and input always yield the same permutation, which is what makes a randomization verifiable.
func Shuffle(ids []uuid.UUID, seed []byte) ([]uuid.UUID, error) {
	ks, err := newKeystream(seed)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := ks.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type keystream struct {
	c   *chacha20.Cipher
	buf [8]byte
}

func newKeystream(seed []byte) (*keystream, error) {
	if len(seed) != SeedSize {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "seed must be %d bytes", SeedSize)
	}
	c, err := chacha20.NewUnauthenticatedCipher(seed, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &keystream{c: c}, nil
}

func (k *keystream) uint64() uint64 {
	k.buf = [8]byte{}
	k.c.XORKeyStream(k.buf[:], k.buf[:])
	return binary.LittleEndian.Uint64(k.buf[:])
}

// intn returns a uniform value in [0,n) by rejection sampling, so no index is favoured.
func (k *keystream) intn(n int) int {
	un := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%un
	for {
		if v := k.uint64(); v < limit {
			return int(v % un)
		}
	}
}
