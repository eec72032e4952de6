package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/hostcall/internal/app"
	"github.com/bft-labs/hostcall/internal/cliconfig"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/invoker"
	"github.com/bft-labs/hostcall/internal/pcml"
	"github.com/bft-labs/hostcall/pkg/log"
)

const longHelp = `Call service program procedures on a host by name.

Parameters are described by PCML templates kept in a directory, one
<name>.pcml file per procedure. Every session opened by hostcall gets the
configured library list applied once before it is used.

Configuration is read from $HOME/.hostcall/config.toml, then HOSTCALL_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  hostcall call APPLIB/BALSVC GETBAL --set account=ACC-001 --get balance:decimal --get status:int
  hostcall call APPLIB/ORDSVC ADDORD --set items.sku[0]=A1 --set items.qty[0]=2 --retries 2
  hostcall libl --libl APPLIB,QGPL
  hostcall templates --slots
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries state shared by the subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	zl      zerolog.Logger
	logger  log.Logger
	svc     *app.Service
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), zl: consoleLogger("info")}

	root := &cobra.Command{
		Use:           "hostcall",
		Short:         "Call host service program procedures through PCML templates",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.hostcall/config.toml)")
	f.StringVar(&c.cfg.Driver, "driver", c.cfg.Driver, "host driver")
	f.StringVar(&c.cfg.Address, "address", c.cfg.Address, "host address")
	f.StringVar(&c.cfg.User, "user", c.cfg.User, "host user profile")
	f.StringVar(&c.cfg.PasswordB64, "password-b64", c.cfg.PasswordB64, "base64 encoded host password")
	f.StringSliceVar(&c.cfg.Libraries, "libl", c.cfg.Libraries, "library list applied to every new session")
	f.IntVar(&c.cfg.MaxSessions, "max-sessions", c.cfg.MaxSessions, "maximum open host sessions")
	f.DurationVar(&c.cfg.IdleTimeout, "idle-timeout", c.cfg.IdleTimeout, "close idle sessions older than this (0 keeps them)")
	f.DurationVar(&c.cfg.AcquireTimeout, "acquire-timeout", c.cfg.AcquireTimeout, "maximum wait for a session")
	f.DurationVar(&c.cfg.InvokeTimeout, "invoke-timeout", c.cfg.InvokeTimeout, "maximum duration of one call")
	f.StringVar(&c.cfg.TemplateDir, "template-dir", c.cfg.TemplateDir, "directory holding <name>.pcml templates")
	f.BoolVar(&c.cfg.WatchTemplates, "watch-templates", c.cfg.WatchTemplates, "reload templates when their files change")
	f.StringVar(&c.cfg.Extractor, "extractor", c.cfg.Extractor, "field extractor: structural or textual")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	if err := f.MarkHidden("driver"); err != nil {
		c.zl.Info().Err(err).Msg("failed to hide driver flag")
	}

	root.AddCommand(c.callCommand(), c.liblCommand(), c.templatesCommand())

	if err := root.Execute(); err != nil {
		c.zl.Error().Err(err).Msg("hostcall")
		os.Exit(1)
	}
}

// setup loads configuration with flag > env > file precedence and builds
// the service.
func (c *cli) setup(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	c.zl = consoleLogger(c.cfg.LogLevel)
	c.logger = log.NewZerologAdapterWithLogger(c.zl)

	svc, err := app.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	c.svc = svc

	logCfg := svc.Config()
	if logCfg.PasswordB64 != "" {
		logCfg.PasswordB64 = "*****"
	}
	c.zl.Debug().Interface("config", logCfg).Msg("configuration")

	return svc.Start(cmd.Context())
}

func (c *cli) teardown() error {
	if c.svc == nil {
		return nil
	}
	return c.svc.Close()
}

func consoleLogger(level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(log.ParseLevel(level)).
		With().Timestamp().Logger()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (c *cli) callCommand() *cobra.Command {
	var (
		sets    []string
		gets    []string
		retries int
	)
	cmd := &cobra.Command{
		Use:   "call LIBRARY/SERVICEPROGRAM TEMPLATE",
		Short: "Invoke the procedure described by TEMPLATE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			assigns := make([]assignment, 0, len(sets))
			for _, s := range sets {
				a, err := parseAssignment(s)
				if err != nil {
					return err
				}
				assigns = append(assigns, a)
			}
			reads := make([]readout, 0, len(gets))
			for _, g := range gets {
				r, err := parseReadout(g)
				if err != nil {
					return err
				}
				reads = append(reads, r)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			return app.Retry(ctx, retries+1, func(ctx context.Context) error {
				return c.call(ctx, out, target, args[1], assigns, reads)
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "input parameter path=value or path[i]=value (repeatable)")
	cmd.Flags().StringArrayVar(&gets, "get", nil, "output parameter path[:string|int|decimal] (repeatable)")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry connection and invocation failures this many times")
	return cmd
}

func (c *cli) call(ctx context.Context, out io.Writer, target invoker.Target, template string, assigns []assignment, reads []readout) error {
	inv, err := c.svc.NewInvoker(ctx, target)
	if err != nil {
		return err
	}
	defer inv.Disconnect()

	if err := inv.BindTemplate(template); err != nil {
		return err
	}
	for _, a := range assigns {
		if err := a.apply(inv); err != nil {
			return err
		}
	}

	ictx, cancel := c.svc.InvokeContext(ctx)
	defer cancel()
	if err := inv.Invoke(ictx); err != nil {
		return err
	}

	for _, r := range reads {
		fmt.Fprintln(out, r.render(inv))
	}
	return nil
}

func (c *cli) liblCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "libl",
		Short: "Open a session and report the library list applied to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			actx, acancel := context.WithTimeout(ctx, c.svc.Config().AcquireTimeout)
			defer acancel()

			p := c.svc.Pool()
			s, err := p.Acquire(actx)
			if err != nil {
				return err
			}
			defer p.Release(s)

			out := cmd.OutOrStdout()
			env := p.Environment()
			fmt.Fprintf(out, "session:   %s\n", s.ID())
			fmt.Fprintf(out, "libraries: %s\n", strings.Join(env.Libraries(), " "))
			switch {
			case env.Empty():
				fmt.Fprintln(out, "applied:   nothing to apply")
			case s.EnvironmentApplied():
				fmt.Fprintln(out, "applied:   yes")
			default:
				fmt.Fprintf(out, "applied:   no (%v)\n", s.EnvironmentError())
			}
			for _, w := range s.Warnings() {
				fmt.Fprintf(out, "warning:   %s\n", w)
			}
			return nil
		},
	}
}

func (c *cli) templatesCommand() *cobra.Command {
	var slots bool
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the templates in the template directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := c.svc.Templates()
			names, err := store.Names()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				if !slots {
					fmt.Fprintln(out, name)
					continue
				}
				t, err := store.Template(name)
				if err != nil {
					c.logger.Warn("template skipped", log.String("template", name), log.Err(err))
					continue
				}
				writeSlots(out, t)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&slots, "slots", false, "show the parameters declared by each template")
	return cmd
}

func writeSlots(out io.Writer, t *pcml.Template) {
	fmt.Fprintf(out, "%s (program %s)\n", t.Name, t.Program)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range t.Slots() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", s.Path, s.Kind, slotSize(s), dims(s.Counts), s.Usage)
	}
	tw.Flush()
}

func slotSize(s domain.Slot) string {
	if s.Kind == domain.KindDecimal {
		return fmt.Sprintf("%d,%d", s.Length, s.Scale)
	}
	return fmt.Sprint(s.Length)
}

func dims(counts []int) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("[%d]", c)
	}
	return strings.Join(parts, "")
}
