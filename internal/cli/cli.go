// Package cli implements the diagramforge command-line interface.
//
// This package provides commands for compiling diagram markup to SVG,
// serving the compiler over HTTP, and managing the compile cache. The
// CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - compile: Compile a diagram document to plain SVG
//   - serve: Expose the compiler and a document store over HTTP
//   - cache: Manage the compile cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
//
// # Example
//
//	import "github.com/diagramforge/diagramforge/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/diagramforge/diagramforge/pkg/buildinfo"
	"github.com/diagramforge/diagramforge/pkg/cache"
	"github.com/diagramforge/diagramforge/pkg/compile"
	"github.com/diagramforge/diagramforge/pkg/config"
)

// appName is the application name used for directories and display.
const appName = "diagramforge"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "diagramforge",
		Short:        "Diagramforge compiles diagram markup to plain SVG",
		Long:         `Diagramforge is a compiler for an SVG-based diagram language with templates, includes, flex containers, graph layout, and anchored connectors. The output is plain SVG with no proprietary extensions.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.compileCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newCompiler builds a compiler from the resolved project config and
// any shared template sources loaded from --templates flags.
func (c *CLI) newCompiler(cfg config.Config, sharedTemplates []string) *compile.Compiler {
	return compile.New(compile.Options{
		Logger:            c.Logger,
		MaxGraphNodes:     cfg.Graph.MaxNodes,
		MaxGraphEdges:     cfg.Graph.MaxEdges,
		MaxIncludeDepth:   cfg.Include.MaxDepth,
		NodeGap:           cfg.Graph.NodeGap,
		RankGap:           cfg.Graph.RankGap,
		DefaultPadding:    cfg.Diagram.Padding,
		DefaultBackground: cfg.Diagram.Background,
		FontFamily:        cfg.Font.Family,
		FontPath:          cfg.Font.Path,
		SharedTemplates:   sharedTemplates,
	})
}

// newCache selects the compile cache backend. Disabled caching and an
// unresolvable cache directory both degrade to the null cache.
func newCache(cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Disabled {
		return cache.NewNullCache(), nil
	}
	dir := cfg.Dir
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/diagramforge/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
