// Package pkg holds the public libraries of maskcloud, a word-cloud engine
// that packs the words of a text into the dark region of a mask image.
//
// # Overview
//
// The engine and its plumbing are split into small packages:
//
//  1. [cloud] - The layout engine: vocabulary, mask, collision index, glyphs,
//     placement planner and compositor
//  2. [pipeline] - Orchestration (decode → layout → encode) with caching,
//     shared by the CLI and the HTTP server
//  3. [cache] and [store] - Result cache (file, memory, Redis) and run
//     history (memory, MongoDB)
//  4. [errors], [colorspec], [fonts] - Error codes, color parsing and the
//     built-in fonts
//
// # Architecture
//
// The typical data flow of one run:
//
//	text + mask image + color + font
//	         ↓
//	    [pipeline] package (decode inputs, look up the cache)
//	         ↓
//	    [cloud] package (rank words, place them largest first)
//	         ↓
//	    PNG + placements
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/maskcloud/pkg/cache"
//	    "github.com/matzehuels/maskcloud/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil, nil)
//	defer runner.Close()
//
//	opts := pipeline.Options{Color: "#1d3557"}
//	opts.SetDefaults()
//
//	res, err := runner.Execute(context.Background(), pipeline.Input{
//	    Text: text,
//	    Mask: maskPNG,
//	}, opts)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("cloud.png", res.PNG, 0o644)
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/cloud/...              # Engine only
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [cloud]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/cloud
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/store
// [errors]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/errors
// [colorspec]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/colorspec
// [fonts]: https://pkg.go.dev/github.com/matzehuels/maskcloud/pkg/fonts
package pkg
