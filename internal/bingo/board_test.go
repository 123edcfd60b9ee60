package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("classic75")
	require.NoError(t, err)
	assert.Equal(t, Classic75, v)

	v, err = ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, Classic75, v)

	_, err = ParseVariant("mega90")
	assert.Error(t, err)
}

func TestVariantPools(t *testing.T) {
	assert.Equal(t, 75, Classic75.PoolSize())
	assert.Equal(t, 5, Classic75.WinThreshold())
	assert.Equal(t, 25, Quick25.PoolSize())
	assert.Equal(t, 1, Quick25.WinThreshold())

	pool := Quick25.Pool()
	require.Len(t, pool, 25)
	assert.Equal(t, 1, pool[0])
	assert.Equal(t, 25, pool[24])
}

func TestBoardComplete(t *testing.T) {
	b := sequentialBoard()
	assert.True(t, b.Complete())

	b[3] = 0
	assert.False(t, b.Complete())

	assert.False(t, Board{1, 2, 3}.Complete())
	assert.False(t, Board(nil).Complete())
}

func TestBoardValid(t *testing.T) {
	b := sequentialBoard()
	assert.True(t, b.Valid(25))

	// Out of pool.
	oob := sequentialBoard()
	oob[0] = 80
	assert.False(t, oob.Valid(75))

	// Duplicate.
	dup := sequentialBoard()
	dup[1] = dup[0]
	assert.False(t, dup.Valid(75))
}
