package mw

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses keyed by URL path, so
// handlers that change the underlying data can invalidate them.
//
// Every Invalidate bumps the path's generation. A response is only
// stored if no invalidation happened while its handler ran, so a read
// that raced a write cannot repopulate the cache with the old data.
type ResponseCache struct {
	store *cache.Cache

	mu          sync.Mutex
	generations *cache.Cache
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	genTTL := 30 * ttl
	if genTTL < time.Minute {
		genTTL = time.Minute
	}
	return &ResponseCache{
		store:       cache.New(ttl, 2*ttl),
		generations: cache.New(genTTL, genTTL),
	}
}

// Invalidate drops the cached response for path.
func (rc *ResponseCache) Invalidate(path string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.generations.SetDefault(path, rc.generationLocked(path)+1)
	rc.store.Delete(path)
}

func (rc *ResponseCache) generation(path string) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generationLocked(path)
}

func (rc *ResponseCache) generationLocked(path string) uint64 {
	if v, ok := rc.generations.Get(path); ok {
		return v.(uint64)
	}
	return 0
}

// storeIfCurrent saves resp unless path was invalidated after gen was
// read.
func (rc *ResponseCache) storeIfCurrent(path string, gen uint64, resp cachedResponse) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.generationLocked(path) == gen {
		rc.store.SetDefault(path, resp)
	}
}

// Middleware serves cached GET responses and stores 2xx ones.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.Path
		if resp, found := rc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		gen := rc.generation(key)
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			rc.storeIfCurrent(key, gen, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			})
		}
	}
}
