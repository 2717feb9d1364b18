package utils

import (
	"pulseops/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of sentiment samples.
// Eviction is implicit: appending over a full buffer overwrites the oldest
// row, so a push is O(1) regardless of the configured window size.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxSamples
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a structured data point (Strict Type)
func (rb *RingBuffer) Append(point models.MSample) {
	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(point.Timestamp),
		point.Sorrow,
		point.Hope,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns n latest records as samples
func (rb *RingBuffer) GetLatest(n int) []models.MSample {
	if rb.size == 0 || n <= 0 {
		return []models.MSample{}
	}

	// Calculate how many to return
	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MSample, count)

	// Calculate starting index (latest data is at index-1)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]

		result[i] = models.MSample{
			Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
			Sorrow:    row[models.RB_IDX_SORROW],
			Hope:      row[models.RB_IDX_HOPE],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MSample {
	if rb.size == 0 {
		return []models.MSample{}
	}

	result := make([]models.MSample, rb.size)

	// Calculate start index (oldest element)
	var startIdx int
	if rb.size == rb.capacity {
		// Buffer is full, oldest is at current index (wrap-around)
		startIdx = rb.index
	} else {
		// Buffer not full, oldest is at index 0
		startIdx = 0
	}

	// Extract in order
	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]

		result[i] = models.MSample{
			Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
			Sorrow:    row[models.RB_IDX_SORROW],
			Hope:      row[models.RB_IDX_HOPE],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// GetSnapshot returns data as 2D array (oldest to newest)
func (rb *RingBuffer) GetSnapshot() [][models.RB_NUM_FEATURES]float64 {
	if rb.size == 0 {
		return [][models.RB_NUM_FEATURES]float64{}
	}

	result := make([][models.RB_NUM_FEATURES]float64, rb.size)

	// Calculate start index
	var startIdx int
	if rb.size == rb.capacity {
		startIdx = rb.index
	} else {
		startIdx = 0
	}

	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.data[idx]
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer
// If newCapacity < size, oldest data is dropped
func (rb *RingBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}
	if newCapacity == rb.capacity {
		return
	}

	// Create new buffer
	newData := make([][models.RB_NUM_FEATURES]float64, newCapacity)

	// Keep the newest rows that fit
	count := rb.size
	if count > newCapacity {
		count = newCapacity
	}

	// Extract latest 'count' items from the old buffer
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		newData[i] = rb.data[idx]
	}

	rb.data = newData
	rb.capacity = newCapacity
	rb.size = count
	rb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
