package pickle

// WriteSequence writes items as a bounded sequence: the length prefix, then
// each item through encode. It is meant for hand-written Marshalers whose
// elements are not derivable. It returns the number of bytes written by
// this call and the writer's error state.
func WriteSequence[T any](w *Writer, items []T, encode func(*Writer, T)) (int, error) {
	start := w.Count()
	w.WriteLength(len(items))
	for _, item := range items {
		if w.err != nil {
			break
		}
		encode(w, item)
	}
	return int(w.Count() - start), w.err
}

// ReadSequence reads a bounded sequence, decoding each element through
// decode. The length is checked against MaxArrayLength before any element
// is read. An empty sequence decodes as nil.
//
// decode reports failures through r; ReadSequence stops at the first one.
func ReadSequence[T any](r *Reader, decode func(*Reader) T) ([]T, error) {
	n := r.ReadLength()
	if r.err != nil || n == 0 {
		return nil, r.err
	}

	items := make([]T, 0, min(n, BUFFER_SIZE))
	for range n {
		item := decode(r)
		if r.err != nil {
			return nil, r.err
		}
		items = append(items, item)
	}
	return items, nil
}
