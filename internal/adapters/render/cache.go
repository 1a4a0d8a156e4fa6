package render

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ports"
)

// CachingRenderer wraps a renderer with an LRU keyed by the spread's
// card+position tuple. Concurrent requests for the same spread collapse into
// a single upstream render.
type CachingRenderer struct {
	next  ports.SpreadRenderer
	cache *lru.Cache[string, []byte]
	group singleflight.Group
}

func NewCachingRenderer(next ports.SpreadRenderer, size int) (*CachingRenderer, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingRenderer{next: next, cache: cache}, nil
}

func (r *CachingRenderer) Render(ctx context.Context, spread domain.Spread) ([]byte, error) {
	key := spread.Key()
	if img, ok := r.cache.Get(key); ok {
		return img, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if img, ok := r.cache.Get(key); ok {
			return img, nil
		}
		img, err := r.next.Render(ctx, spread)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
