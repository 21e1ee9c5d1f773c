// mxkit — Memsource MXLIFF toolkit: inspect, fill and round-trip bilingual job files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/libmemsource/mxkit/config"
	"github.com/libmemsource/mxkit/i18n"
	"github.com/libmemsource/mxkit/langmeta"
	"github.com/libmemsource/mxkit/lockfile"
	"github.com/libmemsource/mxkit/memsource"
	"github.com/libmemsource/mxkit/mxliff"
	"github.com/libmemsource/mxkit/tmcache"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mxkit",
		Short: "Memsource MXLIFF toolkit",
		Long: `mxkit — Memsource MXLIFF toolkit.

Reads bilingual MXLIFF job files, reports translation progress, writes
translations back without touching anything outside the target elements,
and round-trips jobs with a Memsource TMS.

Commands:
  stats       Show languages and translation progress of MXLIFF files
  units       List the trans-units of a file
  apply       Set targets from a YAML map of unit id to text
  tm          Harvest into or fill from the local translation memory
  job         Download, upload and pre-translate TMS jobs

Project settings are read from .mxkit.yaml in the root directory.
TMS credentials come from MEMSOURCE_USER and MEMSOURCE_PASSWORD, which
may be set in a .env file next to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newStatsCmd(),
		newUnitsCmd(),
		newApplyCmd(),
		newTMCmd(),
		newJobCmd(),
		newVersionCmd(),
	)

	return root
}

func setupLogging(w io.Writer, debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

func main() {
	i18n.Init("")
	setupLogging(os.Stderr, false)

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mxkit version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// stats (read-only)
// ---------------------------------------------------------------------------

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.mxliff>...",
		Short: "Show languages and translation progress",
		Long: `Show the language pair, unit counts, translation progress and
parse diagnostics of one or more MXLIFF files. Does not modify any files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				d, err := loadDocument(path)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func printStats(w io.Writer, d *mxliff.Document) {
	total, translated, tagOnly := d.Stats()
	percent := 0
	if total > 0 {
		percent = translated * 100 / total
	}

	fmt.Fprintf(w, "\n%s%s%s  %s → %s\n", colorBlue, d.Path(), colorReset, d.SourceLanguage, d.TargetLanguage)
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %-14s %s → %s\n", i18n.T("Languages:"), langmeta.Label(d.SourceLanguage), langmeta.Label(d.TargetLanguage))
	fmt.Fprintf(w, "  %-14s %d\n", i18n.T("Files:"), len(d.Files))
	fmt.Fprintf(w, "  %-14s %d\n", i18n.T("Units:"), total)
	fmt.Fprintf(w, "  %-14s %-5d %s\n", i18n.T("Translated:"), translated, progressBar(percent, 20))
	fmt.Fprintf(w, "  %-14s %d\n", i18n.T("Tag-only:"), tagOnly)
	if n := len(d.Diagnostics); n > 0 {
		fmt.Fprintf(w, "  %-14s %d\n", i18n.T("Diagnostics:"), n)
	}
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset +
		fmt.Sprintf(" %3d%%", percent)
}

// ---------------------------------------------------------------------------
// units
// ---------------------------------------------------------------------------

type unitsArgs struct {
	untranslated bool
	changed      bool
}

func newUnitsCmd() *cobra.Command {
	var a unitsArgs

	cmd := &cobra.Command{
		Use:   "units <file.mxliff>",
		Short: "List trans-units",
		Long: `List the trans-units of an MXLIFF file as tab-separated columns:
file original, unit id, tag-only marker, source and target.

Segment text is shown in its escaped form, exactly as it must be written
back with 'mxkit apply --raw'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(cmd.OutOrStdout(), args[0], a)
		},
	}

	cmd.Flags().BoolVar(&a.untranslated, "untranslated", false, "Only units with an empty target")
	cmd.Flags().BoolVar(&a.changed, "changed", false, "Only units whose source changed since the last recorded translation")

	return cmd
}

func runUnits(w io.Writer, path string, a unitsArgs) error {
	d, err := loadDocument(path)
	if err != nil {
		return err
	}

	var changed map[*mxliff.TransUnit]bool
	if a.changed {
		lf, err := lockfile.Load(rootDir)
		if err != nil {
			return err
		}
		changed = make(map[*mxliff.TransUnit]bool)
		for _, u := range lf.ChangedUnits(lockfile.TargetKey(rootDir, path), d) {
			changed[u] = true
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			if a.untranslated && u.IsTranslated() {
				continue
			}
			if a.changed && !changed[u] {
				continue
			}
			tag := ""
			if u.OnlyTag {
				tag = "tag"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Original, u.ID, tag, u.Source.Text, u.Target.Text)
		}
	}
	return tw.Flush()
}

// ---------------------------------------------------------------------------
// apply
// ---------------------------------------------------------------------------

type applyArgs struct {
	raw    bool
	output string
}

func newApplyCmd() *cobra.Command {
	var a applyArgs

	cmd := &cobra.Command{
		Use:   "apply <file.mxliff> <translations.yaml>",
		Short: "Set targets from a YAML map",
		Long: `Set target text from a YAML map of trans-unit id to translation:

  "p1:0": "{1&gt;Hallo&lt;1} Welt"
  "p2:0": Tom & Jerry

Plain text is XML-escaped before it is written; pass --raw when the values
are already in escaped form (as printed by 'mxkit units'). Every unit with
a matching id is updated. The file is replaced atomically and left
untouched if any target is not well-formed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(args[0], args[1], a)
		},
	}

	cmd.Flags().BoolVar(&a.raw, "raw", false, "Values are already XML-escaped")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Write to this file instead of replacing the input")

	return cmd
}

func readTranslations(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// applyTranslations sets the target of every unit whose id is in m. It
// returns the lock key and source of each unit it changed, and the ids that
// matched nothing.
func applyTranslations(d *mxliff.Document, m map[string]string, raw bool) (map[string]string, []string) {
	matched := make(map[string]bool, len(m))
	changed := make(map[string]string)
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			text, ok := m[u.ID]
			if !ok {
				continue
			}
			matched[u.ID] = true
			if !raw {
				text = mxliff.EscapeText(text)
			}
			if u.Target.Text == text {
				continue
			}
			u.Target.Text = text
			u.Processed = true
			changed[lockfile.UnitKey(f.Original, u.ID)] = u.Source.Text
		}
	}

	var unknown []string
	for id := range m {
		if !matched[id] {
			unknown = append(unknown, id)
		}
	}
	slices.Sort(unknown)
	return changed, unknown
}

func runApply(path, translationsPath string, a applyArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	d, err := loadDocument(path)
	if err != nil {
		return err
	}
	m, err := readTranslations(translationsPath)
	if err != nil {
		return err
	}

	changed, unknown := applyTranslations(d, m, a.raw)
	n := len(changed)
	for _, id := range unknown {
		log.Warn().Str("file", path).Str("unit", id).Msg(i18n.T("no trans-unit with this id"))
	}

	out := path
	if a.output != "" {
		out = a.output
	}
	if err := d.WriteFile(out); err != nil {
		return err
	}
	log.Info().Str("file", out).Int("units", n).Msg(i18n.N("Applied %d translation", "Applied %d translations", n, n))

	return updateLock(cfg, out, func(lf *lockfile.LockFile, target string) {
		for key, source := range changed {
			lf.Update(target, key, source)
		}
		lf.Clean(target, slices.Collect(maps.Keys(lockfile.DocumentEntries(d))))
	})
}

// ---------------------------------------------------------------------------
// tm (local translation memory)
// ---------------------------------------------------------------------------

func newTMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tm",
		Short: "Local translation memory",
		Long: `Store translated segments in a local SQLite translation memory and
reuse them for identical sources. The database lives at tm_path from
.mxkit.yaml (default .mxkit/tm.db).`,
	}

	harvest := &cobra.Command{
		Use:   "harvest <file.mxliff>...",
		Short: "Store translated units in the translation memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTM(cmd.Context(), args, false)
		},
	}
	fill := &cobra.Command{
		Use:   "fill <file.mxliff>...",
		Short: "Fill empty targets from exact translation memory matches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTM(cmd.Context(), args, true)
		},
	}

	cmd.AddCommand(harvest, fill)
	return cmd
}

func runTM(ctx context.Context, paths []string, fill bool) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	tm, err := tmcache.Open(cfg.AbsTMPath())
	if err != nil {
		return err
	}
	defer tm.Close()

	for _, path := range paths {
		d, err := loadDocument(path)
		if err != nil {
			return err
		}

		if !fill {
			n, err := tm.Harvest(ctx, d)
			if err != nil {
				return fmt.Errorf("harvesting %s: %w", path, err)
			}
			log.Info().Str("file", path).Int("segments", n).Msg(i18n.T("Harvested"))
			continue
		}

		n, err := tm.Fill(ctx, d)
		if err != nil {
			return fmt.Errorf("filling %s: %w", path, err)
		}
		if n == 0 {
			log.Info().Str("file", path).Msg(i18n.T("No matches"))
			continue
		}
		if err := d.Write(); err != nil {
			return err
		}
		if err := recordLock(cfg, path, d); err != nil {
			return err
		}
		log.Info().Str("file", path).Int("units", n).Msg(i18n.N("Filled %d unit", "Filled %d units", n, n))
	}

	total, err := tm.Count(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("db", cfg.AbsTMPath()).Int("segments", total).Msg("translation memory")
	return nil
}

// ---------------------------------------------------------------------------
// job (TMS round trip)
// ---------------------------------------------------------------------------

type jobArgs struct {
	project  string
	job      string
	output   string
	interval time.Duration
	timeout  time.Duration
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Round-trip jobs with the TMS",
		Long: `Download, upload and pre-translate Memsource jobs.

Jobs are named in the jobs list of .mxkit.yaml, or given directly with
--project and --job.`,
	}

	cmd.AddCommand(
		newJobListCmd(),
		newJobDownloadCmd(),
		newJobUploadCmd(),
		newJobPreTranslateCmd(),
	)
	return cmd
}

func newJobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List the jobs of a project",
		Long: `List the jobs of a project at the configured workflow level. The
project is a uid or a numeric internal id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, c, err := connect(ctx)
			if err != nil {
				return err
			}
			uid, err := resolveProject(ctx, c, args[0])
			if err != nil {
				return err
			}
			jobs, err := c.ListJobs(ctx, uid, cfg.WorkflowLevel)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.UID, j.TargetLang, j.Status, j.Filename)
			}
			return tw.Flush()
		},
	}
}

func newJobDownloadCmd() *cobra.Command {
	var a jobArgs

	cmd := &cobra.Command{
		Use:   "download [name]...",
		Short: "Download bilingual files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, c, err := connect(ctx)
			if err != nil {
				return err
			}
			jobs, err := selectJobs(cfg, args, a)
			if err != nil {
				return err
			}

			for _, j := range jobs {
				data, err := c.DownloadBilingualFile(ctx, j.Project, j.UID)
				if err != nil {
					return err
				}
				path := cfg.JobPath(j)
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
				}
				if err := os.WriteFile(path, data, 0644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}

				// The server copy replaces whatever was tracked for this file.
				d, parseErr := mxliff.Parse(data)
				if err := updateLock(cfg, path, func(lf *lockfile.LockFile, target string) {
					lf.RemoveTarget(target)
					if d != nil {
						lf.Record(target, d)
					}
				}); err != nil {
					return err
				}
				if parseErr != nil {
					log.Warn().Str("file", path).Err(parseErr).Msg(i18n.T("downloaded file is not valid MXLIFF"))
					continue
				}
				total, translated, _ := d.Stats()
				log.Info().Str("job", j.Name).Str("file", path).Int("units", total).Int("translated", translated).
					Msg(i18n.T("Downloaded"))
			}
			return nil
		},
	}

	addJobFlags(cmd, &a)
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output path (with --job)")

	return cmd
}

func newJobUploadCmd() *cobra.Command {
	var a jobArgs

	cmd := &cobra.Command{
		Use:   "upload [name]...",
		Short: "Upload bilingual files",
		Long: `Upload local bilingual files back to their jobs. Each file is parsed
first, and a file that is not valid MXLIFF is not sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, c, err := connect(ctx)
			if err != nil {
				return err
			}
			jobs, err := selectJobs(cfg, args, a)
			if err != nil {
				return err
			}

			for _, j := range jobs {
				path := cfg.JobPath(j)
				d, err := loadDocument(path)
				if err != nil {
					return err
				}
				data, err := d.Marshal()
				if err != nil {
					return err
				}
				updated, err := c.UploadBilingualFile(ctx, data)
				if err != nil {
					return err
				}
				log.Info().Str("job", j.Name).Str("file", path).Int("jobs", len(updated)).Msg(i18n.T("Uploaded"))
			}
			return nil
		},
	}

	addJobFlags(cmd, &a)
	cmd.Flags().StringVarP(&a.output, "input", "i", "", "Input path (with --job)")

	return cmd
}

func newJobPreTranslateCmd() *cobra.Command {
	var a jobArgs

	cmd := &cobra.Command{
		Use:   "pretranslate [name]...",
		Short: "Pre-translate jobs on the server",
		Long: `Start server-side pre-translation for the selected jobs, one request
per project, and wait for it to finish. Options come from the pretranslate
section of .mxkit.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.interval <= 0 {
				return errors.New(i18n.T("--interval must be positive"))
			}
			if a.timeout <= 0 {
				return errors.New(i18n.T("--wait must be positive"))
			}

			ctx, cancel := signalContext()
			defer cancel()

			cfg, c, err := connect(ctx)
			if err != nil {
				return err
			}
			jobs, err := selectJobs(cfg, args, a)
			if err != nil {
				return err
			}

			byProject := make(map[string][]string)
			var order []string
			for _, j := range jobs {
				if _, ok := byProject[j.Project]; !ok {
					order = append(order, j.Project)
				}
				byProject[j.Project] = append(byProject[j.Project], j.UID)
			}

			opts := preTranslateOptions(cfg.PreTranslate)
			for _, project := range order {
				id, err := c.PreTranslate(ctx, project, byProject[project], opts)
				if err != nil {
					return err
				}
				log.Info().Str("project", project).Str("request", id).Msg(i18n.T("Pre-translating"))

				waitCtx, waitCancel := context.WithTimeout(ctx, a.timeout)
				_, err = c.WaitAsyncRequest(waitCtx, id, a.interval)
				waitCancel()
				if err != nil {
					return err
				}
				log.Info().Str("project", project).Msg(i18n.T("Pre-translation completed"))
			}
			return nil
		},
	}

	addJobFlags(cmd, &a)
	cmd.Flags().DurationVar(&a.interval, "interval", 10*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&a.timeout, "wait", 10*time.Minute, "Give up waiting after this long")

	return cmd
}

func addJobFlags(cmd *cobra.Command, a *jobArgs) {
	cmd.Flags().StringVar(&a.project, "project", "", "Project uid (instead of a configured job name)")
	cmd.Flags().StringVar(&a.job, "job", "", "Job uid (with --project)")
}

// selectJobs resolves job names against the config, or builds an ad-hoc
// job from --project/--job. No names and no flags selects every
// configured job.
func selectJobs(cfg *config.File, names []string, a jobArgs) ([]config.Job, error) {
	if a.project != "" || a.job != "" {
		if a.project == "" || a.job == "" {
			return nil, errors.New(i18n.T("--project and --job must be used together"))
		}
		if len(names) > 0 {
			return nil, errors.New(i18n.T("job names cannot be combined with --project/--job"))
		}
		path := a.output
		if path == "" {
			path = a.job + ".mxliff"
		}
		return []config.Job{{Name: a.job, Project: a.project, UID: a.job, Path: path}}, nil
	}

	if len(names) == 0 {
		if len(cfg.Jobs) == 0 {
			return nil, errors.New(i18n.T("no jobs configured in %s", config.FileName))
		}
		return cfg.Jobs, nil
	}

	jobs := make([]config.Job, 0, len(names))
	for _, name := range names {
		j, ok := cfg.Job(name)
		if !ok {
			return nil, errors.New(i18n.T("unknown job %q", name))
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func preTranslateOptions(p config.PreTranslate) memsource.PreTranslateOptions {
	opts := memsource.DefaultPreTranslateOptions()
	opts.UseMachineTranslation = p.UseMachineTranslation
	if p.UseTranslationMemory != nil {
		opts.UseTranslationMemory = *p.UseTranslationMemory
	}
	if p.Threshold != 0 {
		opts.Threshold = p.Threshold
	}
	if p.PreTranslateNonTranslatables != nil {
		opts.PreTranslateNonTranslatables = *p.PreTranslateNonTranslatables
	}
	if p.ConfirmNonTranslatableMatches != nil {
		opts.ConfirmNonTranslatableMatches = *p.ConfirmNonTranslatableMatches
	}
	if len(p.SegmentFilters) > 0 {
		opts.SegmentFilters = p.SegmentFilters
	}
	return opts
}

// resolveProject accepts a project uid or a numeric internal id.
func resolveProject(ctx context.Context, c *memsource.Client, ref string) (string, error) {
	id, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	p, err := c.ProjectByInternalID(ctx, id)
	if err != nil {
		return "", err
	}
	log.Debug().Int("internal_id", id).Str("uid", p.UID).Str("name", p.Name).Msg("resolved project")
	return p.UID, nil
}

// connect loads the config and credentials and logs in.
func connect(ctx context.Context) (*config.File, *memsource.Client, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}
	creds, err := config.LoadCredentials(rootDir)
	if err != nil {
		return nil, nil, err
	}

	c := memsource.New(memsource.Options{
		BaseURL:            cfg.BaseURL,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if cfg.InsecureSkipVerify {
		log.Warn().Str("url", cfg.BaseURL).Msg(i18n.T("TLS certificate verification is disabled"))
	}

	log.Debug().Str("url", cfg.BaseURL).Str("user", creds.User).Msg("logging in")
	if _, err := c.Login(ctx, creds.User, creds.Password); err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg(i18n.T("Interrupted"))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// loadDocument loads an MXLIFF file and logs its diagnostics.
func loadDocument(path string) (*mxliff.Document, error) {
	d, err := mxliff.Load(path)
	if err != nil {
		return nil, err
	}
	for _, diag := range d.Diagnostics {
		log.Warn().Str("file", path).Str("kind", diag.Kind.String()).Str("unit", diag.UnitID).Msg(diag.Message)
	}
	total, translated, tagOnly := d.Stats()
	log.Debug().Str("file", path).Int("units", total).Int("translated", translated).Int("tag_only", tagOnly).
		Msg("loaded")
	return d, nil
}

// recordLock stores the checksums of d's translated units in mxkit.lock.
func recordLock(cfg *config.File, path string, d *mxliff.Document) error {
	return updateLock(cfg, path, func(lf *lockfile.LockFile, target string) {
		lf.Record(target, d)
	})
}

// updateLock loads mxkit.lock from the project root, lets fn change the
// entries of path and saves it. It does nothing when locking is disabled.
func updateLock(cfg *config.File, path string, fn func(lf *lockfile.LockFile, target string)) error {
	if !cfg.LockEnabled() {
		return nil
	}
	lf, err := lockfile.Load(cfg.Root())
	if err != nil {
		return err
	}
	fn(lf, lockfile.TargetKey(cfg.Root(), path))
	if err := lf.Save(); err != nil {
		return err
	}
	log.Debug().Str("lock", lf.Path()).Msg(lf.Summary())
	return nil
}
