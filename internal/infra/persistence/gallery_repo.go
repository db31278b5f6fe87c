// Package persistence stores the gallery as one serialized list under a
// single key of a kv.Store.
package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
)

// DefaultKey is the one namespace key the gallery lives under.
const DefaultKey = "leafdoctor_gallery"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Recorder receives write latencies.
type Recorder interface {
	ObservePersistence(d time.Duration)
}

type Options struct {
	Key      string
	Compress bool
	Metrics  Recorder
}

// GalleryRepository implements gallery.Repository on top of any kv.Store.
type GalleryRepository struct {
	store    kv.Store
	key      string
	compress bool
	metrics  Recorder
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func NewGalleryRepository(store kv.Store, opts Options) (*GalleryRepository, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	return &GalleryRepository{
		store:    store,
		key:      key,
		compress: opts.Compress,
		metrics:  opts.Metrics,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Load reads the stored collection. A missing key yields an empty list; an
// undecodable value yields an empty list and gallery.ErrCorrupt.
func (r *GalleryRepository) Load(ctx context.Context) ([]*gallery.Item, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []*gallery.Item{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}

	if bytes.HasPrefix(data, zstdMagic) {
		data, err = r.decoder.DecodeAll(data, nil)
		if err != nil {
			return []*gallery.Item{}, fmt.Errorf("%w: decompress: %v", gallery.ErrCorrupt, err)
		}
	}

	var items []*gallery.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return []*gallery.Item{}, fmt.Errorf("%w: %v", gallery.ErrCorrupt, err)
	}

	out := make([]*gallery.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out, nil
}

// Save overwrites the stored value with the whole collection.
func (r *GalleryRepository) Save(ctx context.Context, items []*gallery.Item) error {
	start := time.Now()
	if items == nil {
		items = []*gallery.Item{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}
	if r.compress {
		data = r.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	if err := r.store.Put(ctx, r.key, data); err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	if r.metrics != nil {
		r.metrics.ObservePersistence(time.Since(start))
	}
	return nil
}

func (r *GalleryRepository) Close() {
	r.encoder.Close()
	r.decoder.Close()
}
