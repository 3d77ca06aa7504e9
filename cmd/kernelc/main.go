// Command kernelc renders and compiles kernel description files.
//
// Usage:
//
//	kernelc [options] <kernel.yaml>...
//
// Examples:
//
//	kernelc -hlsl scale.yaml                # Print the HLSL program
//	kernelc -hlsl -color scale.yaml         # Print it highlighted
//	kernelc -o scale.dxil scale.yaml        # Compile to DXIL
//	kernelc -o out/ a.yaml b.yaml           # Compile several kernels
//	kernelc -watch -hlsl scale.yaml         # Re-render on every save
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/dxkernel"
	"github.com/gogpu/dxkernel/kernel"
	"github.com/gogpu/dxkernel/shader"
)

var (
	output     = flag.String("o", "", "bytecode output file, or directory with several inputs")
	printHLSL  = flag.Bool("hlsl", false, "print the rendered HLSL program")
	group      = flag.String("group", "8,8,1", "thread group size x,y,z")
	configPath = flag.String("config", "", "TOML config file")
	dxcDir     = flag.String("dxc", "", "directory holding dxil and dxcompiler")
	color      = flag.Bool("color", false, "highlight printed HLSL")
	watch      = flag.Bool("watch", false, "rebuild inputs when they change")
	verbose    = flag.Bool("v", false, "log debug output to stderr")
	version    = flag.Bool("version", false, "print version")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("kernelc version %s\n", dxkernel.Version)
		return
	}

	inputs := flag.Args()
	if len(inputs) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	if *verbose {
		dxkernel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := newBuilder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.close()
	b.inputs = len(inputs)

	err = b.buildAll(ctx, inputs)
	if *watch {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		err = b.watch(ctx, inputs)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: kernelc [options] <kernel.yaml>...\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  kernelc -hlsl scale.yaml          Print the HLSL program\n")
	fmt.Fprintf(os.Stderr, "  kernelc -o scale.dxil scale.yaml  Compile to DXIL\n")
	fmt.Fprintf(os.Stderr, "  kernelc -watch -hlsl scale.yaml   Re-render on every save\n")
}

// engine is the part of dxkernel.Engine the builder uses.
type engine interface {
	Compile(ctx context.Context, desc *kernel.Description, groupSize kernel.GroupSize) ([]byte, error)
	Shaders() *shader.Cache
	Close() error
}

// builder renders and compiles inputs with the options from the command line.
type builder struct {
	// inputs is the number of inputs on the command line.
	inputs    int
	groupSize kernel.GroupSize
	compile   bool
	engine    engine
	stdout    io.Writer
}

func newBuilder() (*builder, error) {
	gs, err := kernel.ParseGroupSize(*group)
	if err != nil {
		return nil, err
	}
	if err := gs.Validate(); err != nil {
		return nil, err
	}

	b := &builder{groupSize: gs, compile: *output != "" || !*printHLSL, stdout: os.Stdout}
	if !b.compile {
		return b, nil
	}

	cfg := dxkernel.DefaultConfig()
	if *configPath != "" {
		if cfg, err = dxkernel.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *dxcDir != "" {
		cfg.LibraryDir = *dxcDir
	}
	if cfg.LibraryDir == "" {
		return nil, fmt.Errorf("compiling needs the native compiler: pass -dxc or set library_dir in -config")
	}
	e, err := dxkernel.NewEngine(cfg, nil)
	if err != nil {
		return nil, err
	}
	b.engine = e
	return b, nil
}

func (b *builder) close() {
	if b.engine != nil {
		_ = b.engine.Close()
	}
}

// buildAll builds every input concurrently and prints their reports in
// input order.
func (b *builder) buildAll(ctx context.Context, inputs []string) error {
	reports := make([]bytes.Buffer, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, in := range inputs {
		g.Go(func() error {
			return b.build(ctx, &reports[i], in, outputPath(*output, in, b.inputs))
		})
	}
	err := g.Wait()

	for i := range reports {
		_, _ = b.stdout.Write(reports[i].Bytes())
	}
	return err
}

// outputPath returns where the bytecode of in goes. With several inputs, or
// a trailing slash, o names a directory.
func outputPath(o, in string, inputs int) string {
	if o == "" {
		return ""
	}
	if inputs == 1 && !strings.HasSuffix(o, string(filepath.Separator)) && !strings.HasSuffix(o, "/") {
		return o
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(o, base+".dxil")
}

func (b *builder) build(ctx context.Context, w io.Writer, in, out string) error {
	desc, err := kernel.LoadFile(in)
	if err != nil {
		return err
	}

	if *printHLSL {
		source, err := dxkernel.Render(desc, b.groupSize)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		if err := writeSource(w, source, *color); err != nil {
			return err
		}
	}
	if !b.compile {
		return nil
	}

	bc, err := b.engine.Compile(ctx, desc, b.groupSize)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if out == "" {
		fmt.Fprintf(w, "Compiled %s (%d bytes)\n", in, len(bc))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, bc, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully compiled %s to %s (%d bytes)\n", in, out, len(bc))
	return nil
}

// writeSource prints an HLSL program, highlighted for a 256-colour terminal
// when color is set.
func writeSource(w io.Writer, source string, color bool) error {
	if !color {
		_, err := io.WriteString(w, source)
		return err
	}
	lexer := lexers.Get("hlsl")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return err
	}
	return formatters.Get("terminal256").Format(w, styles.Get("monokai"), it)
}

// rebuild builds in again after it changed on disk. The shader cache is
// keyed by kernel name, so it is emptied first.
func (b *builder) rebuild(ctx context.Context, in string) error {
	if b.engine != nil {
		b.engine.Shaders().Purge()
	}
	return b.buildAll(ctx, []string{in})
}

// watch rebuilds an input whenever it is written. Directories are watched
// rather than files so that editors replacing the file are noticed.
func (b *builder) watch(ctx context.Context, inputs []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]bool)
	byPath := make(map[string]string, len(inputs))
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		byPath[abs] = in
		dir := filepath.Dir(abs)
		if !watched[dir] {
			if err := w.Add(dir); err != nil {
				return err
			}
			watched[dir] = true
		}
	}
	fmt.Fprintf(os.Stderr, "Watching %d file(s), press Ctrl+C to stop\n", len(inputs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			in, ok := byPath[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			if err := b.rebuild(ctx, in); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			dxkernel.Logger().Warn("kernelc: watch error", "err", err)
		}
	}
}
