package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSlice_GetIndex(t *testing.T) {
	tests := []struct {
		name        string
		partyIDs    IDSlice
		requestedID ID
		want        int
	}{
		{"empty", IDSlice{}, 0, -1},
		{"first", Ring(4), 0, 0},
		{"last", Ring(4), 3, 3},
		{"absent", IDSlice{1, 3, 5}, 4, -1},
		{"sparse", IDSlice{1, 3, 5}, 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.partyIDs.GetIndex(tt.requestedID))
		})
	}
}

func TestIDSlice_ValidateRing(t *testing.T) {
	tests := []struct {
		name     string
		partyIDs IDSlice
		wantErr  bool
	}{
		{"ring of 3", Ring(3), false},
		{"ring of 40", Ring(40), false},
		{"two parties", Ring(2), true},
		{"empty", IDSlice{}, true},
		{"gap", IDSlice{0, 1, 3}, true},
		{"not starting at 0", IDSlice{1, 2, 3}, true},
		{"unsorted", IDSlice{0, 2, 1}, true},
		{"duplicate", IDSlice{0, 1, 1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.partyIDs.ValidateRing()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIDSlice_Neighbours(t *testing.T) {
	ring := Ring(5)
	for _, id := range ring {
		left, right := ring.Left(id), ring.Right(id)
		assert.Equal(t, ID((int(id)+4)%5), left)
		assert.Equal(t, ID((int(id)+1)%5), right)
		assert.Equal(t, id, ring.Right(left))
		assert.Equal(t, id, ring.Left(right))
	}
}

func TestNewIDSlice(t *testing.T) {
	ids := []ID{2, 0, 1}
	sorted := NewIDSlice(ids)
	require.True(t, sorted.Valid())
	assert.True(t, sorted.Equal(Ring(3)))
	assert.Equal(t, []ID{2, 0, 1}, ids, "input should not be modified")
	assert.False(t, IDSlice{0, 0, 1}.Valid())
	assert.True(t, sorted.Contains(0, 2))
	assert.False(t, sorted.Contains(0, 3))
	assert.True(t, sorted.Remove(1).Equal(IDSlice{0, 2}))
}

func TestID_String(t *testing.T) {
	assert.Equal(t, "0", ID(0).String())
	assert.Equal(t, "12", ID(12).String())
	assert.Equal(t, "65535", ID(MAX).String())
	assert.Equal(t, []byte{0, 12}, ID(12).Bytes())
}
