package stream

import "context"

// Merge fans every input Stream channel into a single output channel: a
// non-fair select over every independent reconnecting stream. Order across
// streams is not guaranteed; order within one stream's own channel is
// preserved since each stream writes its events sequentially.
func Merge(ctx context.Context, in ...<-chan Event) <-chan Event {
	out := make(chan Event, 256)

	if len(in) == 0 {
		close(out)
		return out
	}

	done := make(chan struct{}, len(in))
	for _, ch := range in {
		go func(ch <-chan Event) {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	go func() {
		for range in {
			<-done
		}
		close(out)
	}()

	return out
}
