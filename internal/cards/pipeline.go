package cards

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/wyattkrebs/talespin-server/internal/logger"
)

// PipelineOptions bundles everything Boot needs to run the loader and
// transcoder and produce a registry.
type PipelineOptions struct {
	Load  LoadOptions
	Cache *Cache
	Spec  TransformSpec
	// Validate re-checks cache hits by decoding them and confirming
	// dimensions, per TALESPIN_VALIDATE_CACHE_HITS_P.
	Validate bool
	// Workers bounds the transcode worker pool; 0 selects GOMAXPROCS.
	Workers int
}

type buildResult struct {
	ref SourceRef
	key string
	err error
}

// Boot runs the full A→B→C pipeline: scans source directories, transcodes
// (or reuses a validated cache hit for) every accepted source with a
// bounded worker pool, and returns a populated, read-only Registry.
//
// A per-source failure removes that source from the final set without
// aborting the boot, as long as at least one card survives; if none do,
// Boot returns an error and the caller must exit nonzero.
func Boot(opts PipelineOptions, log logger.Logger) (*Registry, error) {
	refs, err := Load(opts.Load)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	if _, err := opts.Cache.SweepOrphans(); err != nil {
		log.Warn("cache sweep failed", "error", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan SourceRef)
	results := make(chan buildResult, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				key, err := buildOne(ref, opts)
				results <- buildResult{ref: ref, key: key, err: err}
			}
		}()
	}

	go func() {
		for _, ref := range refs {
			jobs <- ref
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	reg := newRegistry()
	// Assign IDs in path-sorted order regardless of the (unordered)
	// completion order of the worker pool, so identity stays deterministic.
	byPath := make(map[string]buildResult, len(refs))
	for res := range results {
		if res.err != nil {
			log.Warn("source transcode failed, dropping card", "path", res.ref.Path, "error", res.err)
			continue
		}
		byPath[res.ref.Path] = res
	}

	for _, ref := range refs {
		res, ok := byPath[ref.Path]
		if !ok {
			continue
		}
		reg.add(Card{
			SourcePath:   ref.Path,
			ArtifactPath: opts.Cache.Path(res.key),
			MIME:         opts.Spec.MIME(),
		})
	}

	if reg.Len() == 0 {
		return nil, fmt.Errorf("all %d sources failed to transcode", len(refs))
	}
	return reg, nil
}

// buildOne performs the per-source algorithm from component B: hash,
// probe, optionally validate, and rebuild on miss or corruption. Two
// sources that hash to identical content share a cache key, so the probe
// and transcode steps run under that key's lock too, not just the final
// write — otherwise both would transcode redundantly before one atomic
// write won the race.
func buildOne(ref SourceRef, opts PipelineOptions) (string, error) {
	hash, err := HashSource(ref.Path)
	if err != nil {
		return "", fmt.Errorf("hash source: %w", err)
	}
	key := Key(hash, opts.Spec)

	lock := opts.Cache.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if data, ok := opts.Cache.Get(key); ok {
		if !opts.Validate {
			return key, nil
		}
		if err := ValidateArtifact(data, opts.Spec); err == nil {
			return key, nil
		}
		opts.Cache.Evict(key)
	}

	data, err := Transcode(ref.Path, opts.Spec)
	if err != nil {
		return "", fmt.Errorf("transcode: %w", err)
	}
	if err := opts.Cache.writeAtomicLocked(key, data); err != nil {
		return "", fmt.Errorf("write cache: %w", err)
	}
	return key, nil
}
