package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hope/internal/config"
	"hope/internal/logging"
	"hope/internal/pianobar"
)

// Version is set at build time with -ldflags "-X hope/cmd.Version=...".
var Version = "dev"

// Config holds the CLI configuration parsed from arguments.
type Config struct {
	EventCmd pianobar.EventCmd // empty when running as the listener
	Settings *config.Config
}

// ClientMode reports whether an eventcmd was given on the command line.
func (c *Config) ClientMode() bool {
	return c.EventCmd != ""
}

// Runner does the work once arguments are parsed.
type Runner func(ctx context.Context, cfg *Config) error

type options struct {
	configPath string
	socket     string
	logLevel   string
	httpAddr   string
}

// NewRootCmd builds the hope command. lookupEnv is os.LookupEnv outside of
// tests.
func NewRootCmd(lookupEnv func(string) (string, bool), run Runner) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "hope [eventcmd]",
		Short: "A prettier CLI for pianobar, a console-based Pandora client",
		Long: "Run without arguments to listen for events. Set pianobar's event_command to\n" +
			"hope and every eventcmd is relayed to the listener over a Unix socket.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		ValidArgs:     eventCmdStrings(),
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return err
			}
			if len(args) == 1 {
				if _, err := pianobar.ParseEventCmd(args[0]); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := resolveSettings(cmd, opts, lookupEnv)
			if err != nil {
				return err
			}
			cfg := &Config{Settings: settings}
			if len(args) == 1 {
				cfg.EventCmd, _ = pianobar.ParseEventCmd(args[0])
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML or TOML config file [env: "+config.EnvConfig+"]")
	flags.StringVar(&opts.socket, "socket", config.DefaultSocketPath, "The path to the Unix socket used for IPC [env: "+config.EnvSocket+"]")
	flags.StringVar(&opts.logLevel, "log-level", string(logging.DefaultLevel), "Control logging verbosity ("+levelNames()+") [env: "+config.EnvLogLevel+"]")
	flags.StringVar(&opts.httpAddr, "http-addr", "", "Serve the inspection API on this address [env: "+config.EnvHTTPAddr+"]")

	root.SetUsageTemplate(usageTemplate)
	return root
}

// Execute runs the root command against os.Args.
func Execute(ctx context.Context, run Runner) error {
	return NewRootCmd(os.LookupEnv, run).ExecuteContext(ctx)
}

// resolveSettings layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func resolveSettings(cmd *cobra.Command, opts *options, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path, _ = lookupEnv(config.EnvConfig)
	}

	settings := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	settings.ApplyEnv(lookupEnv)

	flags := cmd.Flags()
	if flags.Changed("socket") {
		settings.Socket = opts.socket
	}
	if flags.Changed("log-level") {
		settings.LogLevel = opts.logLevel
	}
	if flags.Changed("http-addr") {
		settings.HTTPAddr = opts.httpAddr
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func eventCmdStrings() []string {
	cmds := pianobar.EventCmds()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func levelNames() string {
	var names []string
	for _, l := range logging.Levels() {
		names = append(names, string(l))
	}
	return strings.Join(names, "|")
}

// Help output uses yellow underlined headers and green literals.
func init() {
	header := color.New(color.FgYellow, color.Underline).SprintFunc()
	literal := color.New(color.FgGreen).SprintFunc()
	cobra.AddTemplateFunc("header", func(s string) string { return header(s) })
	cobra.AddTemplateFunc("literal", func(s string) string { return literal(s) })
}

const usageTemplate = `{{header "Usage:"}}
  {{literal .UseLine}}

{{header "Arguments:"}}
  [eventcmd]  A pianobar eventcmd, e.g. songstart or userlogin{{if .HasAvailableLocalFlags}}

{{header "Options:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`
