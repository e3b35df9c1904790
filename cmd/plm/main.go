package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/plmirror/internal/datasource"
	"github.com/vanderheijden86/plmirror/internal/robot"
	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/config"
	"github.com/vanderheijden86/plmirror/pkg/debug"
	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/mirror"
	"github.com/vanderheijden86/plmirror/pkg/store"
	"github.com/vanderheijden86/plmirror/pkg/ui"
	"github.com/vanderheijden86/plmirror/pkg/version"
	"github.com/vanderheijden86/plmirror/pkg/watcher"
)

type options struct {
	playlist      string
	configPath    string
	dbPath        string
	search        string
	cpuProfile    string
	robot         bool
	robotMetrics  bool
	includeHidden bool
	save          bool
	noSession     bool
	noWatch       bool
	help          bool
	version       bool
}

func parseFlags(args []string, stderr io.Writer) (options, *flag.FlagSet, error) {
	var o options
	fs := flag.NewFlagSet("plm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.playlist, "playlist", "", "Playlist file or directory (default: $"+loader.PlaylistEnvVar+" or the current directory)")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: "+config.ConfigPath()+")")
	fs.StringVar(&o.dbPath, "db", "", "Session database (default: from config)")
	fs.StringVar(&o.search, "search", "", "Initial title filter")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.robot, "robot", false, "Print the playlist tree as JSON instead of starting the TUI")
	fs.BoolVar(&o.robotMetrics, "robot-metrics", false, "Include timing and cache metrics in robot output")
	fs.BoolVar(&o.includeHidden, "include-hidden", false, "Keep filtered and disabled rows in robot output")
	fs.BoolVar(&o.save, "save", false, "Save the playlist to the session database on exit")
	fs.BoolVar(&o.noSession, "no-session", false, "Ignore the session database when choosing what to load")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload the playlist file when it changes")
	fs.BoolVar(&o.help, "help", false, "Show help")
	fs.BoolVar(&o.version, "version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return o, fs, err
	}
	if fs.NArg() > 1 {
		return o, fs, fmt.Errorf("expected at most one playlist, got %d", fs.NArg())
	}
	if fs.NArg() == 1 {
		if o.playlist != "" {
			return o, fs, errors.New("--playlist and a positional playlist are mutually exclusive")
		}
		o.playlist = fs.Arg(0)
	}
	return o, fs, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.help {
		fmt.Fprintln(stdout, "Usage: plm [options] [playlist]")
		fmt.Fprintln(stdout, "\nA live tree view of a playlist.")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}
	if opts.version {
		fmt.Fprintf(stdout, "plm %s\n", version.Version)
		return 0
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(stderr, "warning: %v; using default settings\n", err)
		cfg = config.DefaultConfig()
	}
	mirrorOpts, err := cfg.MirrorOptions()
	if err != nil {
		fmt.Fprintf(stderr, "Error: config: %v\n", err)
		return 2
	}

	storePath := opts.dbPath
	if storePath == "" {
		storePath = cfg.StorePath()
	}
	discovery := datasource.DiscoveryOptions{
		PlaylistPath: opts.playlist,
		StorePath:    storePath,
		Logger:       func(msg string) { debug.Log("%s", msg) },
	}
	if discovery.PlaylistPath == "" {
		discovery.PlaylistPath = "."
	}
	if opts.noSession {
		discovery.StorePath = ""
	}

	ctx := context.Background()
	items, src, err := datasource.Load(ctx, discovery)
	if err != nil {
		if errors.Is(err, datasource.ErrNoSources) {
			fmt.Fprintln(stderr, "Error: no playlist found.")
			fmt.Fprintf(stderr, "Pass a .jsonl or .m3u file, set %s, or run plm in a directory holding playlist.jsonl.\n", loader.PlaylistEnvVar)
			return 1
		}
		fmt.Fprintf(stderr, "Error loading playlist: %v\n", err)
		return 1
	}
	debug.Log("loaded %s", src)

	pl := backend.NewPlaylist()
	diff, err := pl.Replace(items)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading playlist: %v\n", err)
		return 1
	}
	if diff.Skipped > 0 {
		fmt.Fprintf(stderr, "warning: skipped %d items that could not be placed\n", diff.Skipped)
	}

	if opts.robot || !isTerminal(stdout) {
		err = runRobot(ctx, pl, src, mirrorOpts, opts, stdout)
	} else {
		err = runTUI(ctx, pl, src, cfg, mirrorOpts, opts)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.save || src.Type == datasource.SourceTypeSession {
		if err := saveSession(ctx, storePath, pl); err != nil {
			fmt.Fprintf(stderr, "warning: session not saved: %v\n", err)
		}
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runRobot(ctx context.Context, pl *backend.Playlist, src datasource.DataSource, mirrorOpts []mirror.Option, opts options, stdout io.Writer) error {
	m := mirror.New(pl, 0, mirrorOpts...)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Close()
	if opts.search != "" {
		m.RequestSearch(opts.search)
		m.Drain()
	}
	out := robot.Build(m, &src, robot.Options{
		IncludeHidden:  opts.includeHidden,
		IncludeMetrics: opts.robotMetrics,
	})
	return robot.Write(stdout, out)
}

func runTUI(ctx context.Context, pl *backend.Playlist, src datasource.DataSource, cfg config.Config, mirrorOpts []mirror.Option, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := &ui.Scheduler{}
	m := mirror.New(pl, 0, append(mirrorOpts, mirror.WithScheduler(sched.Schedule))...)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Close()
	if opts.search != "" {
		m.RequestSearch(opts.search)
		m.Drain()
	}

	uiOpts := []ui.Option{ui.WithTitle("plm · " + filepath.Base(src.Path))}
	g, gctx := errgroup.WithContext(ctx)

	if src.Type != datasource.SourceTypeSession {
		reloader := datasource.NewReloader(pl, src.Path, loader.ParseOptions{})
		uiOpts = append(uiOpts, ui.WithReload(reloader.Reload))

		if cfg.WatchEnabled() && !opts.noWatch {
			w, err := watcher.New(src.Path,
				watcher.WithDebounce(cfg.Watch.Debounce),
				watcher.WithPollInterval(cfg.Watch.PollInterval),
				watcher.WithForcePoll(cfg.Watch.ForcePoll),
			)
			if err != nil {
				return fmt.Errorf("watch %s: %w", src.Path, err)
			}
			uiOpts = append(uiOpts, ui.WithWatcher(w))
			g.Go(func() error { return w.Run(gctx) })
		}

		cfg.AddRecent(src.Path)
		if err := config.Save(cfg); err != nil {
			debug.Log("config not saved: %v", err)
		}
	}

	g.Go(func() error {
		defer cancel()
		return runTUIProgram(ui.NewModel(m, uiOpts...), sched)
	})
	return g.Wait()
}

func runTUIProgram(m ui.Model, sched *ui.Scheduler) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	sched.Attach(p)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set PLM_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("PLM_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

func saveSession(ctx context.Context, path string, pl *backend.Playlist) error {
	if path == "" {
		return errors.New("no session database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(ctx, pl.Items())
}
