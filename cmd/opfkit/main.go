package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/yuanying/opfkit/internal/opf"
	"github.com/yuanying/opfkit/internal/store"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultDBBookKey = "OEBPS/content.opf"
)

type cliOptions struct {
	Target   string
	Version  string
	Lang     string
	BookPath string
	Root     string
	DBPath   string
	Metrics  bool
	Logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opfkit",
		Short: "Inspect and edit EPUB package documents",
		Long: `opfkit reads and rewrites the OPF package document of an EPUB book:
manifest, spine, guide, cover and identifier metadata.

The document can live in a plain file, in a SQLite database (--db) or,
for read-only commands, inside an .epub container.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	pf.String("log-format", defaultLogFormat, "Log format (text, json)")
	pf.BoolP("verbose", "v", false, "Enable verbose (debug) logging")
	pf.String("version", "", "Package version for new documents (2.0 or 3.0, default 3.0)")
	pf.String("lang", "", "Default metadata language (default en)")
	pf.String("book-path", "", "Book path of the package document (default: relative to --root)")
	pf.String("root", "", "Book root directory, used to resolve resource files")
	pf.String("db", "", "SQLite database holding package documents")
	pf.Bool("metrics", false, "Log transaction metrics when the command finishes")

	root.AddCommand(
		newNewCmd(),
		newShowCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newCoverCmd(),
		newReorderCmd(),
		newGuideCmd(),
		newAutofixCmd(),
		newTouchCmd(),
		newEnsureUUIDCmd(),
		newPropertiesCmd(),
	)
	return root
}

func readCLIOptions(cmd *cobra.Command, args []string) (cliOptions, error) {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")
	version, _ := flags.GetString("version")
	lang, _ := flags.GetString("lang")
	bookPath, _ := flags.GetString("book-path")
	root, _ := flags.GetString("root")
	dbPath, _ := flags.GetString("db")
	metrics, _ := flags.GetBool("metrics")

	switch strings.ToLower(logLevel) {
	case "debug", "info", "warn", "error":
	default:
		return cliOptions{}, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", logLevel)
	}
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return cliOptions{}, fmt.Errorf("--log-format must be text or json: %q", logFormat)
	}
	if version != "" && !strings.HasPrefix(version, "2") && !strings.HasPrefix(version, "3") {
		return cliOptions{}, fmt.Errorf("--version must be 2.0 or 3.0: %q", version)
	}
	if verbose {
		logLevel = "debug"
	}

	opts := cliOptions{
		Version:  version,
		Lang:     lang,
		BookPath: bookPath,
		Root:     root,
		DBPath:   dbPath,
		Metrics:  metrics,
		Logger:   buildLogger(os.Stderr, logLevel, logFormat),
	}
	if len(args) > 0 {
		opts.Target = args[0]
	}
	if opts.BookPath == "" {
		opts.BookPath = defaultBookPath(opts)
	}
	return opts, nil
}

// defaultBookPath derives the package book path from the target file and
// the book root.
func defaultBookPath(opts cliOptions) string {
	if opts.DBPath != "" {
		if opts.Target != "" {
			return filepath.ToSlash(opts.Target)
		}
		return defaultDBBookKey
	}
	if opts.Root != "" && opts.Target != "" {
		if rel, err := filepath.Rel(opts.Root, opts.Target); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	if opts.Target == "" {
		return defaultDBBookKey
	}
	return filepath.Base(opts.Target)
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// document is an opened package document and where it goes back to.
type document struct {
	pkg      *opf.Package
	sink     opf.TextSink
	registry *prometheus.Registry
	logger   *slog.Logger
	close    func() error
}

func (d *document) packageOptions(opts cliOptions, content fs.FS) []opf.Option {
	pkgOpts := []opf.Option{
		opf.WithLogger(opts.Logger),
		opf.WithSettings(opf.StaticSettings{Lang: opts.Lang, Version: opts.Version}),
	}
	if content != nil {
		pkgOpts = append(pkgOpts, opf.WithContent(content))
	}
	if opts.Metrics {
		d.registry = prometheus.NewRegistry()
		pkgOpts = append(pkgOpts, opf.WithMetrics(opf.NewMetrics(d.registry)))
	}
	return pkgOpts
}

// openDocument loads the target package document. With create set a missing
// document is replaced by a blank one.
func openDocument(ctx context.Context, opts cliOptions, create bool) (*document, error) {
	d := &document{logger: opts.Logger, close: func() error { return nil }}

	var content fs.FS
	if opts.Root != "" {
		content = os.DirFS(opts.Root)
	}

	var src opf.TextSource
	bookPath := opts.BookPath
	switch {
	case opts.DBPath != "":
		db, err := store.OpenSQLite(opts.DBPath)
		if err != nil {
			return nil, err
		}
		doc := db.Document(bookPath)
		src, d.sink, d.close = doc, doc, db.Close
	case strings.EqualFold(filepath.Ext(opts.Target), ".epub"):
		e, err := store.OpenEPUB(opts.Target)
		if err != nil {
			return nil, err
		}
		src, d.close = e, e.Close
		bookPath = e.PackagePath()
		content = e.FS()
	default:
		f := store.File{Path: opts.Target}
		src, d.sink = f, f
	}

	pkgOpts := d.packageOptions(opts, content)
	text, err := src.ReadText(ctx)
	switch {
	case err == nil:
		d.pkg = opf.Open(bookPath, text, pkgOpts...)
	case create && errors.Is(err, store.ErrNotFound):
		d.pkg = opf.New(bookPath, opts.Version, pkgOpts...)
	default:
		_ = d.close()
		return nil, fmt.Errorf("%w: %w", opf.ErrCannotOpen, err)
	}
	opts.Logger.Debug("opened package document", "book_path", bookPath, "version", d.pkg.EpubVersion())
	return d, nil
}

// finish saves the document when it has a sink and releases it.
func (d *document) finish(ctx context.Context, save bool) error {
	defer func() { _ = d.close() }()
	if save {
		if d.sink == nil {
			return opf.ErrNoSink
		}
		if err := d.pkg.Save(ctx, d.sink); err != nil {
			return err
		}
		d.logger.Info("saved package document", "book_path", d.pkg.BookPath())
	}
	d.logMetrics()
	return nil
}

func (d *document) logMetrics() {
	if d.registry == nil {
		return
	}
	families, err := d.registry.Gather()
	if err != nil {
		d.logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			d.logger.Info("metric", attrs...)
		}
	}
}

// edit opens the document, runs fn and saves the result.
func edit(cmd *cobra.Command, args []string, create bool, fn func(p *opf.Package, out io.Writer) error) error {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openDocument(ctx, opts, create)
	if err != nil {
		return err
	}
	if err := fn(d.pkg, cmd.OutOrStdout()); err != nil {
		_ = d.close()
		return err
	}
	return d.finish(ctx, true)
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <content.opf>",
		Short: "Create a blank package document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			if opts.DBPath == "" {
				if _, err := os.Stat(opts.Target); err == nil {
					return fmt.Errorf("%s already exists", opts.Target)
				}
			}
			return edit(cmd, args, true, func(p *opf.Package, out io.Writer) error {
				fmt.Fprintf(out, "created %s (version %s, identifier %s)\n",
					p.BookPath(), p.EpubVersion(), p.MainIdentifierValue())
				return nil
			})
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <content.opf|book.epub>",
		Short: "Print a summary of the package document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			d, err := openDocument(ctx, opts, false)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), d.pkg)
			return d.finish(ctx, false)
		},
	}
}

func printSummary(out io.Writer, p *opf.Package) {
	fmt.Fprintf(out, "book path:  %s\n", p.BookPath())
	fmt.Fprintf(out, "version:    %s\n", p.EpubVersion())
	fmt.Fprintf(out, "title:      %s\n", p.PrimaryBookTitle())
	fmt.Fprintf(out, "language:   %s\n", p.PrimaryBookLanguage())
	fmt.Fprintf(out, "identifier: %s\n", p.MainIdentifierValue())

	if cover := p.DetectCover(); cover != nil {
		fmt.Fprintf(out, "cover:      %s (%s, by %s)\n", cover.Href, cover.MediaType, cover.DetectionMethod)
	}
	if nav, ok := p.NavResource(); ok {
		fmt.Fprintf(out, "nav:        %s\n", nav.BookPath)
	}

	fmt.Fprintln(out, "spine:")
	for i, bp := range p.SpineOrderBookPaths() {
		fmt.Fprintf(out, "  %3d  %s\n", i, bp)
	}
	if guide := p.AllGuideInfo(); len(guide) > 0 {
		fmt.Fprintln(out, "guide:")
		for _, g := range guide {
			target := g.BookPath
			if g.Fragment != "" {
				target += "#" + g.Fragment
			}
			fmt.Fprintf(out, "  %-16s %s (%s)\n", g.Type, target, g.Title)
		}
	}
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content.opf> <book-path>...",
		Short: "Add resources to the manifest",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, _ := cmd.Flags().GetString("media-type")
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				for _, bp := range args[1:] {
					p.AddManifestEntry(opf.NewResource(bp, mediaType))
					fmt.Fprintf(out, "added %s\n", bp)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("media-type", "", "Media type hint (default: detected)")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <content.opf> <book-path>...",
		Short: "Remove resources and every reference to them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				resources := make([]opf.Resource, 0, len(args)-1)
				for _, bp := range args[1:] {
					resources = append(resources, opf.NewResource(bp, ""))
				}
				p.BulkRemoveResources(resources)
				fmt.Fprintf(out, "removed %d resources\n", len(resources))
				return nil
			})
		},
	}
}

func newCoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cover <content.opf> <image-book-path>",
		Short: "Mark an image as the cover",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				r := opf.NewResource(args[1], "")
				p.SetResourceAsCoverImage(r)
				if !p.IsCoverImage(r) {
					return fmt.Errorf("%s is not in the manifest", args[1])
				}
				fmt.Fprintf(out, "cover set to %s\n", args[1])
				return nil
			})
		},
	}
}

func newReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <content.opf> <from> <after>",
		Short: "Move the spine entry at position from to just after position after",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid from position %q: %w", args[1], err)
			}
			after, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid after position %q: %w", args[2], err)
			}
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				p.MoveReadingOrder(from, after)
				for i, bp := range p.SpineOrderBookPaths() {
					fmt.Fprintf(out, "%3d  %s\n", i, bp)
				}
				return nil
			})
		},
	}
}

func newGuideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guide <content.opf> <book-path> <code>",
		Short: "Assign a guide semantic code to a document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment, _ := cmd.Flags().GetString("fragment")
			toggle, _ := cmd.Flags().GetBool("toggle")
			clearGuide, _ := cmd.Flags().GetBool("clear")
			if args[2] == "" && !clearGuide {
				return errors.New("guide code must not be empty")
			}
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				if clearGuide {
					p.ClearSemanticCodesInGuide()
				}
				r := opf.NewResource(args[1], "")
				if args[2] != "" {
					p.AddGuideSemanticCode(r, args[2], fragment, toggle)
				}
				if name := p.GuideSemanticNameForResource(r, fragment); name != "" {
					fmt.Fprintf(out, "%s: %s\n", args[1], name)
				} else {
					fmt.Fprintf(out, "%s: no guide entry\n", args[1])
				}
				return nil
			})
		},
	}
	cmd.Flags().String("fragment", "", "Fragment id inside the document")
	cmd.Flags().Bool("toggle", false, "Remove the code if the document already has it")
	cmd.Flags().Bool("clear", false, "Clear the whole guide first")
	return cmd
}

func newAutofixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autofix <content.opf>",
		Short: "Repair dangling references and an empty spine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				p.AutoFixWellFormedErrors()
				fmt.Fprintf(out, "spine holds %d entries\n", len(p.SpineOrderBookPaths()))
				return nil
			})
		},
	}
}

func newPropertiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "properties <content.opf> [book-path...]",
		Short: "Recompute manifest properties from document markup (default: spine documents)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				paths := args[1:]
				if len(paths) == 0 {
					paths = p.SpineOrderBookPaths()
				}
				resources := make([]opf.Resource, 0, len(paths))
				for _, bp := range paths {
					resources = append(resources, opf.NewResource(bp, ""))
				}
				p.RecomputeManifestProperties(resources)
				props := p.ManifestPropertiesForPaths()
				for _, bp := range paths {
					fmt.Fprintf(out, "%s\t%s\n", bp, props[bp])
				}
				return nil
			})
		},
	}
}

func newTouchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch <content.opf>",
		Short: "Update the modification date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				fmt.Fprintln(out, p.AddModificationDateMeta())
				return nil
			})
		},
	}
}

func newEnsureUUIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-uuid <content.opf>",
		Short: "Make sure a urn:uuid identifier exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, args, false, func(p *opf.Package, out io.Writer) error {
				fmt.Fprintln(out, p.UUIDIdentifierValue())
				return nil
			})
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
