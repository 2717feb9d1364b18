package models

// RingBuffer indices and constants
const (
	RB_IDX_TIMESTAMP = 0
	RB_IDX_SORROW    = 1
	RB_IDX_HOPE      = 2
	RB_NUM_FEATURES  = 3
)
