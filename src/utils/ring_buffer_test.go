package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseops/src/models"
)

func sample(ts int64, sorrow, hope float64) models.MSample {
	return models.MSample{Timestamp: ts, Sorrow: sorrow, Hope: hope}
}

// -----------------------------------------------------------------------------

func TestAppendWrapsAroundWhenFull(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := int64(1); i <= 4; i++ {
		rb.Append(sample(i, 0.5, 0.5))
	}

	assert.Equal(t, 3, rb.Size())
	assert.True(t, rb.IsFull())

	all := rb.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, int64(2), all[0].Timestamp)
	assert.Equal(t, int64(3), all[1].Timestamp)
	assert.Equal(t, int64(4), all[2].Timestamp)
}

// -----------------------------------------------------------------------------

func TestGetLatestReturnsNewestInChronologicalOrder(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := int64(1); i <= 3; i++ {
		rb.Append(sample(i, 0, float64(i)/10))
	}

	latest := rb.GetLatest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(2), latest[0].Timestamp)
	assert.Equal(t, int64(3), latest[1].Timestamp)

	assert.Len(t, rb.GetLatest(10), 3)
	assert.Empty(t, rb.GetLatest(0))
}

// -----------------------------------------------------------------------------

func TestGetSnapshotPreservesFeatureLayout(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Append(sample(100, 0.2, 0.8))
	rb.Append(sample(200, 0.6, 0.4))

	snapshot := rb.GetSnapshot()
	require.Len(t, snapshot, 2)

	assert.Equal(t, float64(100), snapshot[0][models.RB_IDX_TIMESTAMP])
	assert.Equal(t, 0.2, snapshot[0][models.RB_IDX_SORROW])
	assert.Equal(t, 0.8, snapshot[0][models.RB_IDX_HOPE])
	assert.Equal(t, float64(200), snapshot[1][models.RB_IDX_TIMESTAMP])
}

// -----------------------------------------------------------------------------

func TestResizeShrinkKeepsNewestRows(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := int64(1); i <= 5; i++ {
		rb.Append(sample(i, 0, 0))
	}

	rb.Resize(3)
	assert.Equal(t, 3, rb.Capacity())
	assert.Equal(t, 3, rb.Size())

	all := rb.GetAll()
	assert.Equal(t, int64(3), all[0].Timestamp)
	assert.Equal(t, int64(5), all[2].Timestamp)

	// Appends after the shrink overwrite the oldest retained row.
	rb.Append(sample(6, 0, 0))
	all = rb.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, int64(4), all[0].Timestamp)
	assert.Equal(t, int64(6), all[2].Timestamp)
}

// -----------------------------------------------------------------------------

func TestResizeGrowRetainsExistingRows(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Append(sample(1, 0, 0))
	rb.Append(sample(2, 0, 0))

	rb.Resize(4)
	assert.Equal(t, 4, rb.Capacity())
	assert.Equal(t, 2, rb.Size())
	assert.False(t, rb.IsFull())

	rb.Append(sample(3, 0, 0))
	rb.Append(sample(4, 0, 0))

	all := rb.GetAll()
	require.Len(t, all, 4)
	assert.Equal(t, int64(1), all[0].Timestamp)
	assert.Equal(t, int64(4), all[3].Timestamp)
}

// -----------------------------------------------------------------------------

func TestClearEmptiesTheBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Append(sample(1, 0.1, 0.9))
	rb.Append(sample(2, 0.2, 0.8))

	rb.Clear()
	assert.Equal(t, 0, rb.Size())
	assert.Empty(t, rb.GetAll())
	assert.Empty(t, rb.GetSnapshot())

	// Reusable after a clear.
	rb.Append(sample(3, 0.3, 0.7))
	assert.Equal(t, 1, rb.Size())
	assert.Equal(t, int64(3), rb.GetAll()[0].Timestamp)
}
