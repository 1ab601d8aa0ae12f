package cropper

import (
	"image"
	"sync"
)

// bufferPool recycles the full-surface buffers of the rotated export path,
// one sync.Pool per rectangle.
type bufferPool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

var buffers = &bufferPool{pools: make(map[image.Rectangle]*sync.Pool)}

// getBuffer returns a transparent RGBA image covering rect.
func getBuffer(rect image.Rectangle) *image.RGBA {
	buffers.mu.RLock()
	pool, ok := buffers.pools[rect]
	buffers.mu.RUnlock()

	if !ok {
		buffers.mu.Lock()
		pool, ok = buffers.pools[rect]
		if !ok {
			pool = &sync.Pool{
				New: func() any { return image.NewRGBA(rect) },
			}
			buffers.pools[rect] = pool
		}
		buffers.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// putBuffer hands img back for reuse.
func putBuffer(img *image.RGBA) {
	if img == nil {
		return
	}
	buffers.mu.RLock()
	pool, ok := buffers.pools[img.Rect]
	buffers.mu.RUnlock()

	if ok {
		pool.Put(img)
	}
}
