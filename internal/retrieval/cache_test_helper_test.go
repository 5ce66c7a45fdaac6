package retrieval

import "github.com/pixell07/localrag/internal/cache"

func newTestCache() (cache.Cache, error) {
	return cache.NewLRU(100)
}
