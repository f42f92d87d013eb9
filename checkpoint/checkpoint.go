// Package checkpoint provides named, tiered snapshots of training
// state. Snapshots always live in memory; at TierMemoryAndDisk they
// are additionally encoded, compressed and spilled to a blob store so
// they survive a release of the in-memory copy.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/glmix/blobstore"
	"github.com/hupe1980/glmix/codec"
	"github.com/hupe1980/glmix/resource"
)

// Tier selects where a snapshot is kept.
type Tier uint8

const (
	// TierMemory keeps the snapshot in memory only.
	TierMemory Tier = iota
	// TierMemoryAndDisk keeps the snapshot in memory and spills an
	// encoded copy to the blob store.
	TierMemoryAndDisk
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierMemoryAndDisk:
		return "memory_and_disk"
	default:
		return "unknown"
	}
}

// ErrNoStore is returned when a disk tier is requested but no blob
// store is configured.
var ErrNoStore = errors.New("checkpoint: no blob store configured")

// Snapshot file layout:
//
//	[Magic "GLXS" 4B][Version 1B][Compression 1B][CodecNameLen 1B][CodecName][Payload]
//
// Payload is the codec-encoded value, framed by compressPayload.
var snapshotMagic = [4]byte{'G', 'L', 'X', 'S'}

const snapshotVersion = 1

// Options configures a Checkpointer.
type Options struct {
	// Codec encodes snapshot values. Defaults to codec.Default.
	Codec codec.Codec

	// Compression applied to encoded snapshots. Defaults to
	// CompressionLZ4.
	Compression Compression

	// Store receives spilled snapshots. Required for
	// TierMemoryAndDisk; may be nil for memory-only use.
	Store blobstore.BlobStore

	// Controller throttles spill IO. Optional.
	Controller *resource.Controller
}

// Option modifies Options.
type Option func(*Options)

// WithCodec sets the snapshot codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithCompression sets the snapshot compression.
func WithCompression(c Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithStore sets the blob store for spilled snapshots.
func WithStore(s blobstore.BlobStore) Option {
	return func(o *Options) { o.Store = s }
}

// WithController sets the resource controller used to throttle spill
// IO.
func WithController(rc *resource.Controller) Option {
	return func(o *Options) { o.Controller = rc }
}

// Checkpointer manages named snapshots. Safe for concurrent use.
type Checkpointer struct {
	opts Options

	mu  sync.RWMutex
	mem map[string][]byte // encoded, uncompressed payloads
}

// New creates a Checkpointer.
func New(optFns ...Option) *Checkpointer {
	opts := Options{
		Codec:       codec.Default,
		Compression: CompressionLZ4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Checkpointer{
		opts: opts,
		mem:  make(map[string][]byte),
	}
}

// Save encodes value under name at the given tier. Saving an existing
// name overwrites it.
func (c *Checkpointer) Save(ctx context.Context, name string, tier Tier, value any) error {
	encoded, err := c.opts.Codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %q: %w", name, err)
	}

	c.mu.Lock()
	c.mem[name] = encoded
	c.mu.Unlock()

	if tier != TierMemoryAndDisk {
		return nil
	}
	if c.opts.Store == nil {
		return ErrNoStore
	}

	blob, err := c.frame(encoded)
	if err != nil {
		return fmt.Errorf("checkpoint: compress %q: %w", name, err)
	}

	if err := c.opts.Controller.AcquireIO(ctx, len(blob)); err != nil {
		return err
	}

	if err := c.opts.Store.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("checkpoint: spill %q: %w", name, err)
	}
	return nil
}

// Load decodes the snapshot stored under name into out. The in-memory
// copy is preferred; if it was released, the blob store is consulted
// and the snapshot is decoded with the codec named in its header.
// Returns blobstore.ErrNotFound if the snapshot does not exist at
// either tier.
func (c *Checkpointer) Load(ctx context.Context, name string, out any) error {
	c.mu.RLock()
	encoded, ok := c.mem[name]
	c.mu.RUnlock()

	dec := c.opts.Codec
	if !ok {
		if c.opts.Store == nil {
			return blobstore.ErrNotFound
		}

		blob, err := c.opts.Store.Get(ctx, name)
		if err != nil {
			return err
		}

		var codecName string
		encoded, codecName, err = c.unframe(blob)
		if err != nil {
			return fmt.Errorf("checkpoint: read %q: %w", name, err)
		}

		// Snapshots are self-describing; a reader configured with a
		// different codec still decodes them. Names not built in fall
		// back to the configured codec.
		if named, found := codec.ByName(codecName); found {
			dec = named
		}
	}

	if err := dec.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("checkpoint: decode %q: %w", name, err)
	}
	return nil
}

// Has reports whether name has an in-memory snapshot.
func (c *Checkpointer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.mem[name]
	return ok
}

// ReleaseMemory drops the in-memory copy of a snapshot, keeping any
// spilled copy. Releasing an unknown name is a no-op.
func (c *Checkpointer) ReleaseMemory(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.mem, name)
}

// Delete removes a snapshot from memory and the blob store.
func (c *Checkpointer) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.mem, name)
	c.mu.Unlock()

	if c.opts.Store == nil {
		return nil
	}
	return c.opts.Store.Delete(ctx, name)
}

// Names returns the sorted names of all snapshots, in memory or
// spilled.
func (c *Checkpointer) Names(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	c.mu.RLock()
	for name := range c.mem {
		seen[name] = struct{}{}
	}
	c.mu.RUnlock()

	if c.opts.Store != nil {
		spilled, err := c.opts.Store.List(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, name := range spilled {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (c *Checkpointer) frame(encoded []byte) ([]byte, error) {
	payload, err := compressPayload(encoded, c.opts.Compression)
	if err != nil {
		return nil, err
	}

	codecName := c.opts.Codec.Name()
	if len(codecName) > 255 {
		return nil, errors.New("codec name too long")
	}

	blob := make([]byte, 0, 7+len(codecName)+len(payload))
	blob = append(blob, snapshotMagic[:]...)
	blob = append(blob, snapshotVersion, byte(c.opts.Compression), byte(len(codecName)))
	blob = append(blob, codecName...)
	blob = append(blob, payload...)

	return blob, nil
}

func (c *Checkpointer) unframe(blob []byte) ([]byte, string, error) {
	if len(blob) < 7 || [4]byte(blob[:4]) != snapshotMagic {
		return nil, "", errors.New("bad snapshot header")
	}
	if blob[4] != snapshotVersion {
		return nil, "", fmt.Errorf("unsupported snapshot version %d", blob[4])
	}

	compression := Compression(blob[5])
	nameLen := int(blob[6])
	if len(blob) < 7+nameLen {
		return nil, "", errors.New("truncated snapshot header")
	}
	codecName := string(blob[7 : 7+nameLen])

	payload, err := decompressPayload(blob[7+nameLen:], compression)
	if err != nil {
		return nil, "", err
	}
	return payload, codecName, nil
}
