// Package viewport positions a rendered page on an anchor once its images
// have settled.
package viewport

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrAnchorNotFound is returned when the hash names no element.
var ErrAnchorNotFound = errors.New("viewport: anchor not found")

// Image is an image element of the rendered document.
type Image interface {
	// Complete reports whether the image already finished (loaded or failed).
	Complete() bool
	// Done is closed when the image finishes.
	Done() <-chan struct{}
}

// Viewport is the layout surface a page is committed to.
type Viewport interface {
	Images() []Image
	// ElementTop returns the top of the element with id, relative to the
	// visible area.
	ElementTop(id string) (float64, bool)
	// BodyTop returns the top of the document body, relative to the
	// visible area.
	BodyTop() float64
	// ScrollTo sets the absolute scroll offset.
	ScrollTo(offset float64)
}

// WaitForImages blocks until every image that is still loading finishes,
// or ctx ends.
func WaitForImages(ctx context.Context, images []Image) error {
	for _, img := range images {
		if img == nil || img.Complete() {
			continue
		}
		select {
		case <-img.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// AnchorID turns a URL hash ("#set-up", "set%20up") into an element id.
func AnchorID(hash string) string {
	id := strings.TrimPrefix(strings.TrimSpace(hash), "#")
	if dec, err := url.PathUnescape(id); err == nil {
		id = dec
	}
	return id
}

// Offset is the scroll offset that puts an element just below a fixed
// header of height headerOffset.
func Offset(elementTop, bodyTop, headerOffset float64) float64 {
	return elementTop - bodyTop - headerOffset
}

// ScrollToHash waits for the page's images, then scrolls vp so the element
// named by hash sits below the header. It returns the offset applied.
func ScrollToHash(ctx context.Context, vp Viewport, hash string, headerOffset float64) (float64, error) {
	id := AnchorID(hash)
	if id == "" {
		return 0, ErrAnchorNotFound
	}
	if err := WaitForImages(ctx, vp.Images()); err != nil {
		return 0, err
	}
	// geometry is read only after the images settle; they shift layout
	top, ok := vp.ElementTop(id)
	if !ok {
		return 0, ErrAnchorNotFound
	}
	offset := Offset(top, vp.BodyTop(), headerOffset)
	vp.ScrollTo(offset)
	return offset, nil
}
