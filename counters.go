package pfrp

// bytesPerMegabyte scales byte counters in state messages
const bytesPerMegabyte = 1024 * 1024

// Counters accumulates, per directed pair (i,j), the bytes node i routed
// choosing next hop j since the last reset
type Counters struct {
	bytes *Matrix
}

// NewCounters is a constructor
func NewCounters(nodeNum int) *Counters {
	return &Counters{bytes: NewMatrix(nodeNum)}
}

// Count adds size bytes to the i -> j counter
func (c *Counters) Count(i, j, size int) {
	c.bytes.Add(i, j, int64(size))
	routedBytes.Add(float64(size))
}

// Bytes returns the i -> j counter
func (c *Counters) Bytes(i, j int) int64 {
	return c.bytes.At(i, j)
}

// Megabytes returns all counters row-major, in units of 2^20 bytes
func (c *Counters) Megabytes() []float64 {
	flat := c.bytes.Flatten()
	mb := make([]float64, len(flat))
	for idx, b := range flat {
		mb[idx] = float64(b) / bytesPerMegabyte
	}
	return mb
}

// Reset zeroes every counter
func (c *Counters) Reset() {
	c.bytes.Reset()
}
