package party

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

// MinRingSize is the smallest ring in which every party has two distinct neighbours.
const MinRingSize = 3

// IDSlice is a sorted slice of IDs.
type IDSlice []ID

// NewIDSlice returns a sorted copy of partyIDs.
func NewIDSlice(partyIDs []ID) IDSlice {
	ids := IDSlice(partyIDs).Copy()
	ids.sort()
	return ids
}

// Ring returns the IDSlice 0, 1, ..., n-1.
func Ring(n int) IDSlice {
	ids := make(IDSlice, n)
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

func (partyIDs IDSlice) Len() int           { return len(partyIDs) }
func (partyIDs IDSlice) Less(i, j int) bool { return partyIDs[i] < partyIDs[j] }
func (partyIDs IDSlice) Swap(i, j int)      { partyIDs[i], partyIDs[j] = partyIDs[j], partyIDs[i] }

func (partyIDs IDSlice) sort() { sort.Sort(partyIDs) }

// Contains returns true if partyIDs contains all IDs.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) Contains(ids ...ID) bool {
	for _, id := range ids {
		if _, found := partyIDs.search(id); !found {
			return false
		}
	}
	return true
}

// GetIndex returns the index of id in partyIDs.
// If no index was found, return -1.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) GetIndex(id ID) int {
	if idx, ok := partyIDs.search(id); ok {
		return idx
	}
	return -1
}

func (partyIDs IDSlice) search(x ID) (int, bool) {
	index := sort.Search(len(partyIDs), func(i int) bool { return partyIDs[i] >= x })
	if index >= 0 && index < len(partyIDs) && partyIDs[index] == x {
		return index, true
	}
	return 0, false
}

// Valid returns true if the IDSlice is sorted and does not contain any duplicates.
func (partyIDs IDSlice) Valid() bool {
	for i := 1; i < len(partyIDs); i++ {
		if partyIDs[i-1] >= partyIDs[i] {
			return false
		}
	}
	return true
}

// ValidateRing checks that partyIDs describes a ring: exactly the positions 0, ..., n-1
// with n >= MinRingSize.
func (partyIDs IDSlice) ValidateRing() error {
	n := len(partyIDs)
	if n < MinRingSize {
		return fmt.Errorf("party: ring of %d parties is too small (minimum %d)", n, MinRingSize)
	}
	if n > MAX {
		return fmt.Errorf("party: ring of %d parties is too large", n)
	}
	for i, id := range partyIDs {
		if int(id) != i {
			return errors.New("party: ring IDs must be exactly 0, ..., n-1 in order")
		}
	}
	return nil
}

// Left returns the neighbour before id in the ring, that is (id - 1) mod n.
// Assumes that partyIDs is a valid ring containing id.
func (partyIDs IDSlice) Left(id ID) ID {
	n := len(partyIDs)
	return partyIDs[(partyIDs.GetIndex(id)+n-1)%n]
}

// Right returns the neighbour after id in the ring, that is (id + 1) mod n.
// Assumes that partyIDs is a valid ring containing id.
func (partyIDs IDSlice) Right(id ID) ID {
	n := len(partyIDs)
	return partyIDs[(partyIDs.GetIndex(id)+1)%n]
}

// Copy returns an identical copy of the receiver.
func (partyIDs IDSlice) Copy() IDSlice {
	a := make(IDSlice, len(partyIDs))
	copy(a, partyIDs)
	return a
}

// Remove finds id in partyIDs and returns a copy of the slice if it was found.
func (partyIDs IDSlice) Remove(id ID) IDSlice {
	newPartyIDs := make(IDSlice, 0, len(partyIDs))
	for _, partyID := range partyIDs {
		if partyID != id {
			newPartyIDs = append(newPartyIDs, partyID)
		}
	}
	return newPartyIDs
}

// Equal returns true if both slices hold the same IDs in the same order.
func (partyIDs IDSlice) Equal(other IDSlice) bool {
	if len(partyIDs) != len(other) {
		return false
	}
	for i := range partyIDs {
		if partyIDs[i] != other[i] {
			return false
		}
	}
	return true
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (partyIDs IDSlice) WriteTo(w io.Writer) (int64, error) {
	if partyIDs == nil {
		return 0, io.ErrUnexpectedEOF
	}
	// write length as 64 bit big endian
	if err := binary.Write(w, binary.BigEndian, uint64(len(partyIDs))); err != nil {
		return 0, err
	}
	total := int64(8)
	for _, id := range partyIDs {
		n, err := id.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (IDSlice) Domain() string {
	return "IDSlice"
}
