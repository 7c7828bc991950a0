package ledlink

// BitDecoder turns classified pulse durations into bytes, most significant bit first.
// Samples outside the thresholds are noise: they are counted and otherwise ignored.
type BitDecoder struct {
	th    Thresholds
	acc   byte
	nbits int

	// Discarded counts the samples that were treated as noise
	Discarded int
}

// NewBitDecoder returns a decoder classifying with th
func NewBitDecoder(th Thresholds) *BitDecoder {
	return &BitDecoder{th: th}
}

// Push feeds one sample. It returns a byte once eight bits have been accumulated.
func (d *BitDecoder) Push(sample int64) (byte, bool) {
	bit, ok := d.th.classify(sample)
	if !ok {
		d.Discarded++
		return 0, false
	}
	d.acc = d.acc<<1 | bit
	d.nbits++
	if d.nbits < 8 {
		return 0, false
	}
	c := d.acc
	d.acc, d.nbits = 0, 0
	return c, true
}

// Pending is the number of bits of an incomplete byte
func (d *BitDecoder) Pending() int { return d.nbits }

// DecodeSamples decodes a complete sample stream. A trailing partial byte is dropped.
func DecodeSamples(samples []int64, th Thresholds) []byte {
	var (
		dec = NewBitDecoder(th)
		out = make([]byte, 0, len(samples)/8)
	)
	for _, s := range samples {
		if c, ok := dec.Push(s); ok {
			out = append(out, c)
		}
	}
	return out
}

// Samples returns the durations a noise-free receiver records for the pulses
func Samples(pulses []Pulse) []int64 {
	out := make([]int64, len(pulses))
	for i, p := range pulses {
		out[i] = p.On.Microseconds()
	}
	return out
}
