package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/anchor-indexer/internal/types"
)

const maxEventLine = 4 * 1024 * 1024

// ReadEvents decodes newline-delimited JSON index events from r into out until r
// is exhausted or ctx is done. Blank lines are ignored. out is not closed.
func ReadEvents(ctx context.Context, r io.Reader, out chan<- *types.IndexEvent) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var event types.IndexEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("line %d: invalid index event: %w", line, err)
		}
		if event.Transaction == nil {
			return fmt.Errorf("line %d: index event without transaction", line)
		}

		select {
		case out <- &event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
