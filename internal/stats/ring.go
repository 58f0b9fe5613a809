package stats

// Ring keeps a fixed-capacity FIFO window of recent values per channel,
// used for live trend plots. Oldest values are evicted on overflow.
type Ring struct {
	dim      int
	capacity int
	n        int
	head     int
	data     [][]float64
}

// NewRing creates a ring buffer for dim channels of the given capacity.
func NewRing(dim, capacity int) *Ring {
	r := &Ring{
		dim:      dim,
		capacity: capacity,
		data:     make([][]float64, dim),
	}
	for i := range r.data {
		r.data[i] = make([]float64, capacity)
	}

	return r
}

// Reset empties all channel windows.
func (r *Ring) Reset() {
	r.n = 0
	r.head = 0
}

// Add appends one value per channel, evicting the oldest when full.
// Values beyond the ring's dimension are ignored.
func (r *Ring) Add(values []float64) {
	for i := 0; i < r.dim && i < len(values); i++ {
		r.data[i][r.head] = values[i]
	}
	r.head = (r.head + 1) % r.capacity
	if r.n < r.capacity {
		r.n++
	}
}

// Len returns the number of values currently held per channel.
func (r *Ring) Len() int {
	return r.n
}

// Channel returns a copy of one channel's window, oldest first.
func (r *Ring) Channel(i int) []float64 {
	out := make([]float64, r.n)
	start := r.head - r.n
	if start < 0 {
		start += r.capacity
	}
	for j := 0; j < r.n; j++ {
		out[j] = r.data[i][(start+j)%r.capacity]
	}

	return out
}

// Snapshot returns a copy of all channel windows, oldest first.
func (r *Ring) Snapshot() [][]float64 {
	out := make([][]float64, r.dim)
	for i := range out {
		out[i] = r.Channel(i)
	}

	return out
}
