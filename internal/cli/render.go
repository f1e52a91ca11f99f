package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/overlay/pkg/config"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/geometry"
	"github.com/matzehuels/overlay/pkg/markup"
	"github.com/matzehuels/overlay/pkg/pipeline"
	"github.com/matzehuels/overlay/pkg/scene"
)

const (
	defaultTextX    = 5  // percent of canvas width
	defaultTextY    = 90 // percent of canvas height
	defaultFontSize = 5  // percent of canvas width
	defaultImageW   = 20 // percent of canvas width
)

// renderOpts holds the command-line flags for the render command.
// Flags override the corresponding fields of a request file.
type renderOpts struct {
	output      string   // output path, "-" for stdout; default is the suggested filename
	format      string   // request file format: json, yaml, or sniffed
	background  string   // background source
	text        string   // markup for a single text overlay
	align       string   // initial alignment of the text overlay
	textX       float64  // text anchor x, percent
	textY       float64  // text anchor y, percent
	fontSize    float64  // text size, percent of canvas width
	color       string   // text colour
	images      []string // image overlays: source[@x,y[,width]]
	width       int      // canvas width
	height      int      // canvas height
	fit         string   // cover, contain, stretch
	anchor      string   // background anchor
	brightness  float64  // background brightness percent
	variant     string   // default, desktop or mobile
	refresh     bool     // bypass the render cache
	noCache     bool     // disable caching entirely
	printMarkup bool     // print parsed markup instead of rendering
	timings     bool     // print per-stage timings
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		textX:    defaultTextX,
		textY:    defaultTextY,
		fontSize: defaultFontSize,
	}

	cmd := &cobra.Command{
		Use:   "render [request-file]",
		Short: "Render overlays onto a background",
		Long: `Render composes a request and writes the resulting image.

The request is read from a JSON or YAML file ("-" reads stdin), built from
flags, or both; flags override the file.

Examples:
  overlay render request.yaml
  overlay render -b bg.gif --text "[center]Hello^{2}" --text-x 50 -o out.gif
  overlay render -b https://example.com/bg.jpg --image preset:acme@5,5,15`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			req, err := buildRequest(cmd, path, &opts)
			if err != nil {
				return err
			}
			if opts.printMarkup {
				return printMarkup(cmd.OutOrStdout(), req)
			}
			return c.runRender(cmd.Context(), cmd.OutOrStdout(), req, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", `output file, "-" for stdout (default: suggested name in the current directory)`)
	f.StringVar(&opts.format, "format", "", "request file format: json, yaml (default: detect)")
	f.StringVarP(&opts.background, "background", "b", "", "background source: URL, file, data URI or preset:<id>")
	f.StringVarP(&opts.text, "text", "t", "", "text overlay markup")
	f.StringVar(&opts.align, "align", "", "initial text alignment (left, center, right)")
	f.Float64Var(&opts.textX, "text-x", opts.textX, "text anchor x, percent of canvas width")
	f.Float64Var(&opts.textY, "text-y", opts.textY, "text baseline y, percent of canvas height")
	f.Float64Var(&opts.fontSize, "font-size", opts.fontSize, "text size, percent of canvas width")
	f.StringVar(&opts.color, "color", "", "text colour (#rgb, #rrggbb, #rrggbbaa)")
	f.StringArrayVarP(&opts.images, "image", "i", nil, "image overlay source[@x,y[,width]] (repeatable)")
	f.IntVar(&opts.width, "width", 0, "canvas width in pixels (default: background width)")
	f.IntVar(&opts.height, "height", 0, "canvas height in pixels (default: keep aspect ratio)")
	f.StringVar(&opts.fit, "fit", "", "background fit: cover (default), contain, stretch")
	f.StringVar(&opts.anchor, "anchor", "", "background anchor: center (default), top, bottom, left, right")
	f.Float64Var(&opts.brightness, "brightness", 100, "background brightness percent [0, 200]")
	f.StringVar(&opts.variant, "variant", "", "layout variant: default, desktop, mobile")
	f.BoolVar(&opts.refresh, "refresh", false, "re-render even if a cached result exists")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	f.BoolVar(&opts.printMarkup, "print-markup", false, "print the parsed markup of each text overlay and exit")
	f.BoolVar(&opts.timings, "timings", false, "print per-stage timings")

	return cmd
}

// buildRequest reads the request file, if any, and applies flag overrides.
func buildRequest(cmd *cobra.Command, path string, opts *renderOpts) (*pipeline.Request, error) {
	req := &pipeline.Request{}
	if path != "" {
		data, err := readRequestFile(cmd.InOrStdin(), path)
		if err != nil {
			return nil, err
		}
		if req, err = pipeline.DecodeRequest(data, opts.format); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if opts.background != "" {
		req.Background = opts.background
	}
	if opts.width > 0 {
		req.Canvas.Width = opts.width
	}
	if opts.height > 0 {
		req.Canvas.Height = opts.height
	}
	if opts.fit != "" {
		req.Canvas.Fit = scene.FitMode(opts.fit)
	}
	if opts.anchor != "" {
		req.Canvas.Anchor = scene.Anchor(opts.anchor)
	}
	if flags.Changed("brightness") {
		b := opts.brightness
		req.Canvas.Brightness = &b
	}
	if opts.variant != "" {
		req.Variant = geometry.Variant(opts.variant)
	}
	req.Refresh = req.Refresh || opts.refresh

	if opts.text != "" {
		text := opts.text
		if opts.align != "" {
			a, ok := markup.ParseAlignment(opts.align)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidInput, "invalid alignment: %q (must be one of: left, center, right)", opts.align)
			}
			text = "[" + a.String() + "]" + text
		}
		req.Overlays = append(req.Overlays, scene.Text(scene.TextOverlay{
			Markup:          text,
			FontSizePercent: opts.fontSize,
			Color:           opts.color,
			X:               opts.textX,
			Y:               opts.textY,
		}))
	}
	for _, flag := range opts.images {
		o, err := parseImageFlag(flag)
		if err != nil {
			return nil, err
		}
		req.Overlays = append(req.Overlays, scene.Image(o))
	}

	if req.Background == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no background: pass a request file or --background")
	}
	return req, nil
}

func readRequestFile(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read request %s", path)
	}
	return data, nil
}

// parseImageFlag parses "source[@x,y[,width]]". The last '@' separates the
// placement so sources may contain '@' themselves.
func parseImageFlag(s string) (scene.ImageOverlay, error) {
	o := scene.ImageOverlay{Source: s, WidthPercent: defaultImageW}
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return o, nil
	}
	fields := strings.Split(s[at+1:], ",")
	if len(fields) < 2 || len(fields) > 3 {
		// Not a placement suffix; treat the whole value as the source.
		return o, nil
	}
	nums := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return o, errors.New(errors.ErrCodeInvalidInput, "invalid --image placement %q", s[at+1:])
		}
		nums[i] = v
	}
	o.Source = s[:at]
	o.X, o.Y = nums[0], nums[1]
	if len(nums) == 3 {
		o.WidthPercent = nums[2]
	}
	return o, nil
}

// printMarkup writes the normalized markup, the plain text and the diagnostics of every text
// overlay.
func printMarkup(w io.Writer, req *pipeline.Request) error {
	n := 0
	for _, o := range req.Overlays {
		if o.Kind != scene.KindText || o.Text == nil {
			continue
		}
		lines, diags := markup.ParseWithDiagnostics(o.Text.Markup)
		if n > 0 {
			fmt.Fprintln(w)
		}
		n++
		fmt.Fprintln(w, markup.Format(lines))
		fmt.Fprintf(w, "# plain: %s\n", strings.ReplaceAll(markup.PlainText(o.Text.Markup), "\n", " / "))
		for _, d := range diags {
			fmt.Fprintf(w, "# %s\n", errors.UserMessage(d))
		}
	}
	if n == 0 {
		printInfo("No text overlays")
	}
	return nil
}

func (c *CLI) runRender(ctx context.Context, stdout io.Writer, req *pipeline.Request, opts *renderOpts) error {
	comps, _, err := c.build(ctx, config.BuildOptions{NoCache: opts.noCache, AllowFiles: true})
	if err != nil {
		return err
	}
	defer comps.Close()

	toStdout := opts.output == "-"
	prog := newProgress(c.Logger)

	var spinner *Spinner
	if !toStdout {
		spinner = newSpinner(ctx, os.Stderr, "Rendering...")
		spinner.Start()
	}
	res, err := comps.Runner.Render(ctx, *req)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if toStdout {
		_, err := stdout.Write(res.Data)
		return err
	}

	out := opts.output
	if out == "" {
		out = res.Filename
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	prog.done("render finished", "request", res.RequestID)

	printSuccess("Rendered %s", StyleHighlight.Render(filepath.Base(out)))
	printFile(out)
	fmt.Println(renderStats(res))
	for _, d := range res.Diagnostics {
		printWarning("%s", d)
	}
	if opts.timings && !res.CacheHit {
		printTimings(res.Stats)
	}
	return nil
}
