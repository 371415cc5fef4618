package demod

// processDigital demodulates binary FSK: the FM discriminator recovers the
// instantaneous frequency, then an integrate-and-dump over each symbol
// period slices hard decisions of +/-1.
//
// Symbol timing carries fractional sample counts across blocks so symbol
// boundaries stay aligned regardless of how the stream is chunked.
func (d *Demodulator) processDigital(block []complex128) []float64 {
	out := make([]float64, 0, d.outputLen(len(block))+1)

	prev := d.prev
	acc := d.symAcc
	count := d.symCount

	for _, cur := range block {
		acc += discriminate(prev, cur) * d.discGain
		prev = cur
		count++

		if count >= d.samplesPerSym {
			if acc >= 0 {
				out = append(out, 1)
			} else {
				out = append(out, -1)
			}
			acc = 0
			count -= d.samplesPerSym
		}
	}

	d.prev = prev
	d.symAcc = acc
	d.symCount = count

	return out
}
