package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNextRollReturnsFirstHit(t *testing.T) {
	var visited []int
	requery := func(roll, year int) (bool, error) {
		visited = append(visited, roll)
		return roll == 104, nil
	}

	roll, found, err := findNextRoll(100, 2024, requery)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 104, roll)
	assert.Equal(t, []int{101, 102, 103, 104}, visited)
}

func TestFindNextRollBoundedScan(t *testing.T) {
	calls := 0
	requery := func(roll, year int) (bool, error) {
		calls++
		return false, nil
	}

	roll, found, err := findNextRoll(200, 2024, requery)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, roll)
	assert.Equal(t, maxRollScan, calls)
}

func TestFindNextRollPropagatesError(t *testing.T) {
	requery := func(roll, year int) (bool, error) {
		return false, assert.AnError
	}

	_, found, err := findNextRoll(300, 2024, requery)
	assert.False(t, found)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNilSessionCloseIsSafe(t *testing.T) {
	var s *Session
	assert.NotPanics(t, func() { s.Close() })
}
