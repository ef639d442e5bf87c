package domain

// ZeroValue is the well-formed reply used when a read cannot be served.
var ZeroValue = []byte{0x00}

// NegotiateRead returns the slice of value a read at offset may carry. A
// positive mtu truncates value to max(1, mtu-1) bytes before the offset is
// applied; mtu <= 0 means no MTU was negotiated. Out-of-range offsets yield an
// empty slice. The result never aliases value and the call never panics.
func NegotiateRead(value []byte, offset int, mtu int) (out []byte) {
	defer func() {
		if recover() != nil {
			out = append([]byte(nil), ZeroValue...)
		}
	}()

	if offset < 0 || offset > len(value) {
		return []byte{}
	}

	limit := len(value)
	if mtu > 0 {
		limit = min(limit, max(1, mtu-1))
	}
	if offset > limit {
		return []byte{}
	}

	out = make([]byte, limit-offset)
	copy(out, value[offset:limit])

	return out
}
