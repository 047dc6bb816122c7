package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/elum-utils/srvlocate"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
)

// exitError carries the process status for errors raised by the command
// itself. Errors of any other type come from argument parsing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func internalError(err error) error {
	return &exitError{code: exitInternal, err: err}
}

// options are the resolved settings of a run.
type options struct {
	profile     srvlocate.Profile
	nameservers []string
	timeout     time.Duration
	workers     int
	families    srvlocate.IPType
	output      string
	color       bool
	verbose     bool
}

func addFlags(fs *pflag.FlagSet) {
	fs.String("service", srvlocate.DefaultProfile.Service, "SRV service name")
	fs.String("proto", srvlocate.DefaultProfile.Proto, "SRV protocol name")
	fs.String("suffix", srvlocate.DefaultProfile.Suffix, "required domain suffix (empty accepts any domain)")
	fs.StringSlice("nameserver", nil, "recursive DNS server to query, may be repeated (default: system resolver)")
	fs.Duration("timeout", srvlocate.DefaultTimeout, "timeout of a single DNS query")
	fs.Int("workers", srvlocate.DefaultWorkers, "number of SRV targets resolved concurrently")
	fs.Bool("ipv4-only", false, "resolve only A records")
	fs.Bool("ipv6-only", false, "resolve only AAAA records")
	fs.StringP("output", "o", srvlocate.FormatText, "output format: text, json or yaml")
	fs.String("color", "auto", "colorize text output: auto, always or never")
	fs.BoolP("verbose", "v", false, "log DNS exchanges to stderr")
	fs.String("config", "", "YAML configuration file")
}

// newViper layers flags over SRVLOCATE_* environment variables over the
// optional config file.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SRVLOCATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func loadOptions(v *viper.Viper, out io.Writer) (*options, error) {
	opts := &options{
		nameservers: v.GetStringSlice("nameserver"),
		timeout:     v.GetDuration("timeout"),
		workers:     v.GetInt("workers"),
		families:    srvlocate.IPv4AndIPv6,
		output:      strings.ToLower(v.GetString("output")),
		verbose:     v.GetBool("verbose"),
	}

	opts.profile = srvlocate.DefaultProfile
	opts.profile.Service = v.GetString("service")
	opts.profile.Proto = v.GetString("proto")
	opts.profile.Suffix = strings.Trim(strings.ToLower(v.GetString("suffix")), ".")
	if opts.profile.Suffix != srvlocate.DefaultProfile.Suffix {
		opts.profile.Name = opts.profile.Suffix
		if opts.profile.Name == "" {
			opts.profile.Name = opts.profile.Service
		}
	}
	if opts.profile.Service == "" || opts.profile.Proto == "" {
		return nil, usageErrorf("--service and --proto must not be empty")
	}

	v4, v6 := v.GetBool("ipv4-only"), v.GetBool("ipv6-only")
	switch {
	case v4 && v6:
		return nil, usageErrorf("--ipv4-only and --ipv6-only are mutually exclusive")
	case v4:
		opts.families = srvlocate.IPv4
	case v6:
		opts.families = srvlocate.IPv6
	}

	switch opts.output {
	case srvlocate.FormatText, srvlocate.FormatJSON, srvlocate.FormatYAML:
	default:
		return nil, usageErrorf("unknown output format %q", opts.output)
	}

	switch c := v.GetString("color"); c {
	case "always":
		opts.color = true
	case "never":
	case "auto":
		opts.color = isTerminal(out)
	default:
		return nil, usageErrorf("unknown color mode %q", c)
	}
	return opts, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLogger(verbose bool, errOut io.Writer) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(errOut),
		zap.DebugLevel,
	)
	return zap.New(core)
}

// NewCmdRoot builds the srvlocate command writing reports to out and
// diagnostics to errOut.
func NewCmdRoot(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srvlocate [flags] DOMAIN",
		Short: "Resolve a hosted game server to its IP addresses and ports",
		Long: `Resolve a hosted game server to its IP addresses and ports.

The SRV record _<service>._<proto>.DOMAIN is queried and every target it
names is resolved to its A and AAAA records. Targets are listed in SRV
preference order: ascending priority, then descending weight.`,
		Example:       "  srvlocate myserver.aternos.me\n  srvlocate -o json --nameserver 1.1.1.1 myserver.aternos.me",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				cmd.SilenceUsage = true
				return internalError(err)
			}
			opts, err := loadOptions(v, out)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return lookup(cmd.Context(), opts, args[0], out, errOut)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	addFlags(cmd.Flags())
	return cmd
}

func lookup(ctx context.Context, opts *options, domain string, out, errOut io.Writer) error {
	log := newLogger(opts.verbose, errOut)
	defer log.Sync()

	r, err := srvlocate.NewResolver(
		srvlocate.WithProfile(opts.profile),
		srvlocate.WithNameservers(opts.nameservers...),
		srvlocate.WithTimeout(opts.timeout),
		srvlocate.WithWorkers(opts.workers),
		srvlocate.SelectIPTraffic(opts.families),
		srvlocate.WithLogger(log),
	)
	if err != nil {
		return internalError(err)
	}

	if opts.output != srvlocate.FormatText {
		res, lerr := r.Lookup(ctx, domain)
		if err := srvlocate.Encode(out, opts.output, domain, res, lerr); err != nil {
			return internalError(err)
		}
		return nil
	}

	p := srvlocate.NewPrinter(out, opts.color)
	if _, err := opts.profile.Validate(domain); err != nil {
		p.Error(opts.profile, domain, err)
		p.Done()
		return nil
	}
	p.Start(opts.profile, domain)
	res, err := r.Lookup(ctx, domain)
	if err != nil {
		p.Error(opts.profile, domain, err)
	} else {
		p.Result(res)
	}
	p.Done()
	return nil
}

// run executes the command line and returns the process exit status.
// Showing help is reported as a usage outcome.
func run(args []string, out, errOut io.Writer) int {
	cmd := NewCmdRoot(out, errOut)
	cmd.SetArgs(args)

	helpShown := false
	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, a []string) {
		helpShown = true
		defaultHelp(c, a)
	})

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		if helpShown {
			return exitUsage
		}
		return exitOK
	}

	fmt.Fprintf(errOut, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}
