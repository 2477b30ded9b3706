package step

import (
	"context"
	"sync"
)

// Background tracks goroutines that outlive the request that started them,
// so shutdown can wait for them. The zero value is ready to use. A nil
// *Background runs goroutines untracked.
type Background struct {
	wg sync.WaitGroup
}

// Go runs f in a new goroutine.
func (b *Background) Go(f func()) {
	if b == nil {
		go f()
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

// Wait blocks until every goroutine started with Go returns or ctx ends.
func (b *Background) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
