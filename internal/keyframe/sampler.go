package keyframe

// SampleIndices returns k frame positions evenly spaced over [0, frameCount-1].
// Each position is i*(n-1)/(k-1) rounded half up. Positions repeat when
// frameCount < k and are all zero when frameCount <= 1.
func SampleIndices(frameCount, k int) ([]int, error) {
	if k <= 0 {
		return nil, ErrInvalidSampleCount
	}

	n := max(frameCount, 1)
	indices := make([]int, k)
	if k == 1 {
		return indices, nil
	}

	span := n - 1
	den := 2 * (k - 1)
	for i := range indices {
		indices[i] = (2*i*span + (k - 1)) / den
	}
	return indices, nil
}
