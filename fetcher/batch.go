package fetcher

import "ewintr.nl/ytstats/model"

// MaxBatchSize is the number of ids the videos endpoint accepts per call.
const MaxBatchSize = 50

// Split cuts refs into consecutive batches of size, the last one possibly
// shorter.
func Split(refs []model.VideoReference, size int) []model.Batch {
	if size < 1 {
		size = MaxBatchSize
	}
	batches := make([]model.Batch, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := start + size
		if end > len(refs) {
			end = len(refs)
		}
		batches = append(batches, model.Batch(refs[start:end:end]))
	}
	return batches
}
