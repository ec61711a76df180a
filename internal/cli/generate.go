package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
)

// generateFlags holds the flags of the generate command that are not
// pipeline options.
type generateFlags struct {
	mask       string // mask image path
	text       string // literal text
	textFile   string // text file path, "-" for stdin
	output     string // PNG output path
	placements string // optional JSON dump of the placements
	noCache    bool
	refresh    bool
	watch      bool

	// Pointer options of pipeline.Options, bound through plain values.
	preferHorizontal float64
	relativeScaling  float64
	margin           int
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	opts := c.Config.Defaults
	f := generateFlags{
		preferHorizontal: valueOr(opts.PreferHorizontal, pipeline.DefaultPreferHorizontal),
		relativeScaling:  valueOr(opts.RelativeScaling, pipeline.DefaultRelativeScaling),
		margin:           valueOr(opts.Margin, pipeline.DefaultMargin),
	}
	if opts.MaxWords == 0 {
		opts.MaxWords = pipeline.DefaultMaxWords
	}
	if opts.MinFontSize == 0 {
		opts.MinFontSize = pipeline.DefaultMinFontSize
	}
	if opts.Seed == 0 {
		opts.Seed = pipeline.DefaultSeed
	}
	if opts.Color == "" {
		opts.Color = pipeline.DefaultColor
	}
	if opts.Background == "" {
		opts.Background = pipeline.DefaultBackground
	}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a word cloud shaped by a mask image",
		Long: `Generate a word cloud shaped by a mask image.

Words are counted in the input text, ranked by frequency and packed into the
dark region of the mask, largest first. Pixels of the mask that are pure white
stay empty. The same inputs and seed always produce the same image.

Results are cached locally for faster subsequent runs.`,
		Example: `  maskcloud generate -m heart.png -f speech.txt -o cloud.png
  cat notes.txt | maskcloud generate -m logo.png -f - --color '#1d3557' --watch
  maskcloud generate -m mask.png -t "go gopher go" --random --placements words.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PreferHorizontal = pipeline.Float(f.preferHorizontal)
			opts.RelativeScaling = pipeline.Float(f.relativeScaling)
			opts.Margin = pipeline.Int(f.margin)
			return c.runGenerate(cmd.Context(), cmd.InOrStdin(), f, opts)
		},
	}

	// Input/output flags
	cmd.Flags().StringVarP(&f.mask, "mask", "m", "", "mask image (PNG, JPEG, GIF, BMP, TIFF or WebP)")
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "text to build the cloud from")
	cmd.Flags().StringVarP(&f.textFile, "text-file", "f", "", "file to read the text from (- for stdin)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output PNG (default: <mask>.cloud.png)")
	cmd.Flags().StringVar(&f.placements, "placements", "", "also write the placements as JSON to this file")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if a cached result exists")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "show live placement progress")
	_ = cmd.MarkFlagRequired("mask")
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")

	// Vocabulary flags
	cmd.Flags().IntVar(&opts.MaxWords, "max-words", opts.MaxWords, "maximum number of words placed")
	cmd.Flags().IntVar(&opts.MinWordLength, "min-word-length", opts.MinWordLength, "drop words shorter than this")
	cmd.Flags().StringSliceVar(&opts.Stopwords, "stopwords", opts.Stopwords, "words to ignore (comma-separated)")
	cmd.Flags().BoolVar(&opts.Collocations, "collocations", opts.Collocations, "merge frequent word pairs into one entry")
	cmd.Flags().BoolVar(&opts.KeepCase, "keep-case", opts.KeepCase, "count case variants separately")
	cmd.Flags().BoolVar(&opts.KeepPlurals, "keep-plurals", opts.KeepPlurals, "count plurals separately from their singular")
	cmd.Flags().BoolVar(&opts.IncludeNumbers, "include-numbers", opts.IncludeNumbers, "keep words made only of digits")

	// Layout flags
	cmd.Flags().IntVar(&opts.MinFontSize, "min-font-size", opts.MinFontSize, "smallest font size in pixels")
	cmd.Flags().IntVar(&opts.MaxFontSize, "max-font-size", opts.MaxFontSize, "largest font size in pixels (0: fit the canvas)")
	cmd.Flags().IntVar(&opts.FontStep, "font-step", opts.FontStep, "font size decrement when a word does not fit")
	cmd.Flags().Float64Var(&f.preferHorizontal, "prefer-horizontal", f.preferHorizontal, "probability of trying a word horizontally first (0-1)")
	cmd.Flags().Float64Var(&f.relativeScaling, "relative-scaling", f.relativeScaling, "how strongly frequency drives size (0: rank only, 1: proportional)")
	cmd.Flags().IntVar(&f.margin, "margin", f.margin, "free pixels around every word")
	cmd.Flags().BoolVar(&opts.NoRepeat, "no-repeat", opts.NoRepeat, "place each word at most once")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", opts.MaxAttempts, "cap on position probes for the whole run (0: default)")
	cmd.Flags().IntVar(&opts.MaxCanvasSide, "max-canvas-side", opts.MaxCanvasSide, "downscale masks larger than this (0: never)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed for a reproducible layout")
	cmd.Flags().BoolVar(&opts.Random, "random", opts.Random, "ignore --seed and produce a new layout every run")

	// Render flags
	cmd.Flags().StringVarP(&opts.Color, "color", "c", opts.Color, "word color: #hex, rgb(), hsl() or a CSS name")
	cmd.Flags().StringVar(&opts.Background, "background", opts.Background, "background color")
	cmd.Flags().Float64Var(&opts.ContourWidth, "contour-width", opts.ContourWidth, "draw the mask outline this wide (0: none)")
	cmd.Flags().StringVar(&opts.ContourColor, "contour-color", opts.ContourColor, "mask outline color")
	cmd.Flags().BoolVar(&opts.Antialias, "antialias", opts.Antialias, "smooth glyph edges")
	cmd.Flags().StringVar(&opts.Font, "font", opts.Font, "built-in font (regular, bold) or a font file path")

	return cmd
}

// runGenerate reads the inputs, runs the pipeline, and writes the outputs.
func (c *CLI) runGenerate(ctx context.Context, stdin io.Reader, f generateFlags, opts pipeline.Options) error {
	prog := newProgress(loggerFromContext(ctx))
	in, err := readInput(stdin, f)
	if err != nil {
		return err
	}
	loggerFromContext(ctx).Debug("read input", "mask_bytes", len(in.Mask), "text_bytes", len(in.Text))

	runner, err := c.newRunner(f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	opts.Refresh = f.refresh

	var res *pipeline.Result
	if f.watch {
		res, err = c.runWatch(ctx, runner, in, opts)
	} else {
		res, err = c.runWithSpinner(ctx, runner, in, opts)
	}
	if err != nil {
		if errors.IsRecoverable(err) {
			printDetail("Try a lower --min-word-length or fewer --stopwords")
		}
		return fmt.Errorf("generate: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := f.output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(f.mask, filepath.Ext(f.mask)) + ".cloud.png"
	}
	if err := os.WriteFile(outputPath, res.PNG, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	prog.done("wrote cloud", "path", outputPath, "placed", res.Stats.Placed, "cached", res.CacheInfo.Hit)

	printSuccess("Word cloud generated")
	printFile(outputPath)

	switch {
	case f.placements == "":
	case res.CacheInfo.Hit:
		printWarning("Placements are not cached; rerun with --refresh to write %s", f.placements)
	default:
		if err := writePlacements(f.placements, res.Placements); err != nil {
			return err
		}
		printFile(f.placements)
	}

	printStats(res.Stats, res.CacheInfo.Hit)
	if len(res.Placements) > 0 {
		printNewline()
		printPlacements(res.Placements, topPlacements)
	}
	if res.Stats.Dropped > 0 {
		printDetail("%d words did not fit at the minimum font size", res.Stats.Dropped)
	}
	return nil
}

// runWithSpinner executes the pipeline behind a spinner that counts placements.
func (c *CLI) runWithSpinner(ctx context.Context, runner *pipeline.Runner, in pipeline.Input, opts pipeline.Options) (*pipeline.Result, error) {
	spinner := newSpinnerWithContext(ctx, "Generating word cloud...")
	opts.OnEvent = func(e layout.Event) {
		if e.Kind == layout.EventPlaced {
			spinner.Update("Placing words... %d/%d", e.Placed, e.Target)
		}
	}
	spinner.Start()

	res, err := runner.Execute(ctx, in, opts)
	if err != nil {
		spinner.StopWithError("Generation failed")
		return nil, err
	}
	spinner.Stop()
	return res, nil
}

// readInput loads the mask and text named by the flags. A text file of "-"
// reads stdin.
func readInput(stdin io.Reader, f generateFlags) (pipeline.Input, error) {
	var in pipeline.Input

	mask, err := os.ReadFile(f.mask)
	if err != nil {
		return in, fmt.Errorf("read mask: %w", err)
	}
	in.Mask = mask

	switch {
	case f.text != "":
		in.Text = f.text
	case f.textFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return in, fmt.Errorf("read stdin: %w", err)
		}
		in.Text = string(data)
	case f.textFile != "":
		data, err := os.ReadFile(f.textFile)
		if err != nil {
			return in, fmt.Errorf("read text: %w", err)
		}
		in.Text = string(data)
	default:
		return in, errors.New(errors.ErrCodeInvalidInput, "one of --text or --text-file is required")
	}
	return in, nil
}

func writePlacements(path string, placements []layout.Placement) error {
	data, err := json.MarshalIndent(placements, "", "  ")
	if err != nil {
		return fmt.Errorf("encode placements: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write placements %s: %w", path, err)
	}
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
