package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// SampleRingBuffer keeps the most recent int16 samples for level metering.
// One goroutine writes; any number may read.
type SampleRingBuffer struct {
	samples []int16
	head    int // next write position
	count   int // valid samples, up to capacity
	mu      sync.RWMutex
}

// NewSampleRingBuffer creates a ring buffer with the given capacity.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{
		samples: make([]int16, max(capacity, 1)),
	}
}

// Write appends samples, overwriting the oldest when full.
func (b *SampleRingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)

	for _, sample := range samples {
		b.samples[b.head] = sample
		b.head = (b.head + 1) % capacity

		if b.count < capacity {
			b.count++
		}
	}
}

// ReadSamples returns up to n most recent samples, oldest first.
func (b *SampleRingBuffer) ReadSamples(n int) []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, b.count)
	result := make([]int16, n)
	capacity := len(b.samples)

	// head is the next write slot, so the n newest start at head-n
	start := (b.head - n + capacity) % capacity

	for i := range n {
		result[i] = b.samples[(start+i)%capacity]
	}

	return result
}

// Count returns the number of valid samples in the buffer.
func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Level returns the RMS of the n most recent samples scaled to [0, 1].
func (b *SampleRingBuffer) Level(n int) float64 {
	samples := b.ReadSamples(n)
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}

	return min(math.Sqrt(sum/float64(len(samples))), 1)
}

// Reset discards all samples.
func (b *SampleRingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.count = 0
}

// BytesToInt16 converts S16LE bytes to int16 samples. A trailing odd byte
// is ignored.
func BytesToInt16(data []byte) []int16 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return nil
	}

	samples := make([]int16, numSamples)
	for i := range numSamples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}
