package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/diagramforge/diagramforge/pkg/cache"
	"github.com/diagramforge/diagramforge/pkg/config"
)

// compileOpts holds the command-line flags for the compile command.
type compileOpts struct {
	output     string   // output file path; empty or "-" writes to stdout
	templates  []string // shared template source files
	configPath string   // explicit diagramforge.toml path
	noCache    bool     // bypass the compile cache
	cacheTTL   time.Duration
}

// compileCommand creates the compile command. It reads a diagram
// document from a file or stdin, runs the full pipeline, and writes the
// resulting SVG to a file or stdout.
func (c *CLI) compileCommand() *cobra.Command {
	var opts compileOpts

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a diagram document to plain SVG",
		Long: `Compile reads a diagram document, expands templates and includes,
lays out flex containers and graphs, resolves anchors and arrows, and
emits plain SVG. Reads stdin when no file is given or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return c.runCompile(cmd.Context(), input, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringArrayVarP(&opts.templates, "templates", "t", nil, "diagram file whose templates are shared with the document (repeatable)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: diagramforge.toml next to the input)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the compile cache")
	cmd.Flags().DurationVar(&opts.cacheTTL, "cache-ttl", 0, "cache entry lifetime (0 keeps entries forever)")

	return cmd
}

// runCompile executes the compile pipeline for one document.
func (c *CLI) runCompile(ctx context.Context, input string, opts *compileOpts) error {
	cfg, err := c.loadConfig(input, opts.configPath)
	if err != nil {
		return err
	}

	source, sourcePath, err := readInput(input)
	if err != nil {
		return err
	}

	sharedTemplates, templatesHash, err := loadSharedTemplates(opts.templates)
	if err != nil {
		return err
	}

	store, err := newCache(cfg.Cache, opts.noCache)
	if err != nil {
		return err
	}
	defer store.Close()

	key, cacheable := compileCacheKey(source, templatesHash, cfg)
	if cacheable {
		if data, hit, err := store.Get(ctx, key); err == nil && hit {
			c.Logger.Debug("Cache hit", "key", key)
			return c.writeOutput(opts.output, string(data), true)
		}
	}

	// Only spin when stdout stays free for the SVG itself.
	var spin *Spinner
	if opts.output != "" && opts.output != "-" {
		spin = newSpinnerWithContext(ctx, fmt.Sprintf("Compiling %s...", displayName(input)))
		spin.Start()
	}

	prog := newProgress(c.Logger)
	compiler := c.newCompiler(cfg, sharedTemplates)
	out, err := compiler.Compile(source, sourcePath)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Compiled %s", displayName(input)))

	if cacheable {
		ttl := opts.cacheTTL
		if ttl == 0 && cfg.Cache.TTLHours > 0 {
			ttl = time.Duration(cfg.Cache.TTLHours) * time.Hour
		}
		if err := store.Set(ctx, key, []byte(out), ttl); err != nil {
			c.Logger.Debug("Cache write failed", "err", err)
		}
	}

	return c.writeOutput(opts.output, out, false)
}

// loadConfig resolves the project config from an explicit path or by
// discovery next to the input document.
func (c *CLI) loadConfig(input, configPath string) (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, found, err := config.Discover(input)
	if err != nil {
		return config.Config{}, err
	}
	if found != "" {
		c.Logger.Debug("Loaded config", "path", found)
	}
	return cfg, nil
}

// readInput returns the document source and the path used to anchor
// relative includes. Stdin input resolves includes against the working
// directory.
func readInput(input string) (source, sourcePath string, err error) {
	if input == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", input, err)
	}
	return string(data), input, nil
}

// loadSharedTemplates reads the --templates files and returns their
// contents plus a combined hash for cache keying.
func loadSharedTemplates(paths []string) (sources []string, hash string, err error) {
	if len(paths) == 0 {
		return nil, "", nil
	}
	var combined strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("read templates %s: %w", path, err)
		}
		sources = append(sources, string(data))
		combined.Write(data)
	}
	return sources, cache.Hash([]byte(combined.String())), nil
}

// compileCacheKey derives the cache key for a compile. Documents that
// may pull in included files are not cacheable, since the key covers
// only the top-level source text.
func compileCacheKey(source, templatesHash string, cfg config.Config) (string, bool) {
	if strings.Contains(source, "include") {
		return "", false
	}
	keyer := cache.NewDefaultKeyer()
	key := keyer.CompileKey(cache.Hash([]byte(source)), cache.CompileKeyOpts{
		TemplatesHash:   templatesHash,
		MaxIncludeDepth: cfg.Include.MaxDepth,
		MaxGraphNodes:   cfg.Graph.MaxNodes,
		MaxGraphEdges:   cfg.Graph.MaxEdges,
		NodeGap:         cfg.Graph.NodeGap,
		RankGap:         cfg.Graph.RankGap,
		Padding:         cfg.Diagram.Padding,
		Background:      cfg.Diagram.Background,
		FontFamily:      cfg.Font.Family,
		FontPath:        cfg.Font.Path,
	})
	return key, true
}

// writeOutput emits the SVG to stdout or the requested file.
func (c *CLI) writeOutput(output, svg string, cached bool) error {
	if output == "" || output == "-" {
		_, err := fmt.Print(svg)
		return err
	}
	if err := os.WriteFile(output, []byte(svg), 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Wrote %s", output)
	printStats(len(svg), cached)
	return nil
}

// displayName names the input in progress messages.
func displayName(input string) string {
	if input == "-" {
		return "stdin"
	}
	return input
}
