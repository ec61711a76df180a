package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it so they cache and log the same way.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete decode → layout → encode pipeline with caching.
func (r *Runner) Execute(ctx context.Context, in Input, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	fontData, err := ResolveFont(in, opts)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	result := &Result{}

	if opts.Cacheable() {
		result.CacheInfo.Key = r.Keyer.ArtifactKey(opts.ArtifactKeyOpts(in, fontData))
		if !opts.Refresh {
			if a, ok := r.loadArtifact(ctx, result.CacheInfo.Key); ok {
				result.PNG = a.PNG
				result.Stats = a.Stats
				result.CacheInfo.Hit = true
				r.Logger.Info("cloud served from cache", "placed", a.Stats.Placed, "bytes", len(a.PNG))
				return result, nil
			}
		}
	}

	// Stage 1: Decode
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	observability.Pipeline().OnDecodeStart(ctx, len(in.Mask))
	decodeStart := time.Now()
	img, err := Decode(in, fontData)
	result.Stats.DecodeTime = time.Since(decodeStart)
	if err != nil {
		observability.Pipeline().OnDecodeComplete(ctx, 0, 0, result.Stats.DecodeTime, err)
		return nil, fmt.Errorf("decode: %w", err)
	}
	b := img.Bounds()
	observability.Pipeline().OnDecodeComplete(ctx, b.Dx(), b.Dy(), result.Stats.DecodeTime, nil)

	r.Logger.Info("decoded mask",
		"width", b.Dx(),
		"height", b.Dy(),
		"duration", result.Stats.DecodeTime)

	// Stage 2: Layout
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	observability.Pipeline().OnLayoutStart(ctx, b.Dx(), b.Dy())
	layoutStart := time.Now()
	res, err := GenerateLayout(in.Text, img, fontData, opts)
	result.Stats.LayoutTime = time.Since(layoutStart)
	if err != nil {
		observability.Pipeline().OnLayoutComplete(ctx, 0, result.Stats.LayoutTime, err)
		return nil, fmt.Errorf("layout: %w", err)
	}
	observability.Pipeline().OnLayoutComplete(ctx, res.Stats.Layout.Placed, result.Stats.LayoutTime, nil)

	result.Image = res.Image
	result.Placements = res.Placements
	result.Vocabulary = res.Vocabulary
	result.Stats.Width = res.Stats.Width
	result.Stats.Height = res.Stats.Height
	result.Stats.VocabularySize = res.Stats.VocabularySize
	result.Stats.Placed = res.Stats.Layout.Placed
	result.Stats.Dropped = res.Stats.Layout.Dropped
	result.Stats.Passes = res.Stats.Layout.Passes
	result.Stats.Probes = res.Stats.Layout.Probes

	r.Logger.Info("computed layout",
		"words", res.Stats.VocabularySize,
		"placed", res.Stats.Layout.Placed,
		"passes", res.Stats.Layout.Passes,
		"duration", result.Stats.LayoutTime)
	if res.Stats.Layout.Exhausted {
		r.Logger.Warn("probe budget exhausted; cloud may be sparse", "probes", res.Stats.Layout.Probes)
	}

	// Stage 3: Encode
	observability.Pipeline().OnEncodeStart(ctx)
	encodeStart := time.Now()
	png, err := Encode(res.Image)
	result.Stats.EncodeTime = time.Since(encodeStart)
	observability.Pipeline().OnEncodeComplete(ctx, len(png), result.Stats.EncodeTime, err)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", errors.Wrap(errors.ErrCodeInternal, err, "encode png"))
	}
	result.PNG = png
	result.Stats.Bytes = len(png)

	r.Logger.Info("encoded png",
		"bytes", len(png),
		"duration", result.Stats.EncodeTime)

	if result.CacheInfo.Key != "" {
		r.storeArtifact(ctx, result.CacheInfo.Key, png, result.Stats)
	}
	return result, nil
}

// SaveResult stores an encoded image under a result ID.
func (r *Runner) SaveResult(ctx context.Context, id string, png []byte) error {
	if err := r.Cache.Set(ctx, r.Keyer.ResultKey(id), png, cache.TTLResult); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "result", len(png))
	return nil
}

// LoadResult returns the image stored under a result ID, or an error
// wrapping cache.ErrNotFound.
func (r *Runner) LoadResult(ctx context.Context, id string) ([]byte, error) {
	data, hit, err := r.Cache.Get(ctx, r.Keyer.ResultKey(id))
	if err != nil {
		return nil, err
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "result")
		return nil, fmt.Errorf("result %s: %w", id, cache.ErrNotFound)
	}
	observability.Cache().OnCacheHit(ctx, "result")
	return data, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) loadArtifact(ctx context.Context, key string) (artifact, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return artifact{}, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return artifact{}, false
	}
	a, err := unmarshalArtifact(data)
	if err != nil {
		// If deserialization fails, fall through to recompute
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return artifact{}, false
	}
	observability.Cache().OnCacheHit(ctx, "artifact")
	return a, true
}

func (r *Runner) storeArtifact(ctx context.Context, key string, png []byte, st Stats) {
	data, err := marshalArtifact(png, st)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(data))
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// checkContext returns ctx's error. A passed deadline is coded TIMEOUT so
// callers can tell it from an engine failure; cancellation stays as is.
func checkContext(ctx context.Context) error {
	err := ctx.Err()
	if err == context.DeadlineExceeded {
		return errors.Wrap(errors.ErrCodeTimeout, err, "pipeline deadline exceeded")
	}
	return err
}
