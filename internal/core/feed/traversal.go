package feed

import (
	"context"
	"sync"

	"Snapfeed/internal/core/posts"
)

// Traversal holds a consumer's position in the feed. The engine itself keeps no
// position; a consumer that wants to resume keeps a Traversal.
type Traversal struct {
	engine *Engine
	cursor string
	done   bool
	mu     sync.Mutex
}

// Traversal starts a new traversal at the newest posts.
func (e *Engine) Traversal() *Traversal {
	return &Traversal{engine: e}
}

// Next fetches the next page and advances the cursor. A failed fetch leaves
// the cursor where it was so the call can be retried. Once the feed has ended
// Next returns an empty page without touching the store.
func (t *Traversal) Next(ctx context.Context) (*Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return &Page{Documents: []*posts.Post{}, After: t.cursor}, nil
	}

	page, err := t.engine.FetchPage(ctx, t.cursor)
	if err != nil {
		return page, err
	}

	next, ok := NextCursor(page)
	if !ok {
		t.done = true
		return page, nil
	}
	t.cursor = next
	return page, nil
}

// HasNext reports whether the feed has not yet returned its empty page.
func (t *Traversal) HasNext() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

// Cursor returns the cursor the next call to Next will use.
func (t *Traversal) Cursor() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Reset moves the traversal back to the newest posts.
func (t *Traversal) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = ""
	t.done = false
}
