package pipeline

import (
	"context"
	"sync"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// BatchItem pairs one document's outcome with its position in the input
// slice, so callers can correlate results with their uploads.
type BatchItem struct {
	Index  int    `json:"index"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// ProcessBatch fans documents out over a fixed worker pool. Results come back
// indexed in input order; one failing document never stops the others.
func (p *Processor) ProcessBatch(ctx context.Context, docs []entity.RawDocument, workers int) []BatchItem {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan int)
	out := make([]BatchItem, len(docs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range jobs {
				p.Logger.Debug("batch.worker.job", "worker", id, "index", i, "document_id", docs[i].ID.String())
				res, err := p.Process(ctx, docs[i])
				out[i] = BatchItem{Index: i, Result: res, Err: err}
			}
		}(w)
	}

	for i := range docs {
		p.Logger.Debug("batch.enqueue",
			"index", i,
			"document_id", docs[i].ID.String(),
			"status", string(constants.StageQueued),
		)
		select {
		case <-ctx.Done():
			// mark everything not yet queued as cancelled
			for j := i; j < len(docs); j++ {
				out[j] = BatchItem{Index: j, Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return out
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return out
}
