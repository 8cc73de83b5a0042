package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/connet-dev/dirserve"
	"github.com/connet-dev/dirserve/pkg/slogc"
	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`

	Server ServerConfig `toml:"server"`
}

type ServerConfig struct {
	Port        int    `toml:"port"`
	StatusAddr  string `toml:"status-addr"`
	OpenBrowser *bool  `toml:"open-browser"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dirserve",
		Short:         "dirserve serves a local directory over http",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(shellCmd())
	cmd.AddCommand(indexCmd())
	cmd.AddCommand(checkCmd())

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <config-file>",
		Short: "check configuration file",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = wrapErr("check config", func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigs(args)
		if err != nil {
			return err
		}

		if _, err := logger(cfg); err != nil {
			return err
		}
		if _, err := dirserve.NewController(cfg.Server.options(slog.Default())...); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return err
	})

	return cmd
}

// configFlags registers the flags every serving command shares.
func configFlags(cmd *cobra.Command) (*[]string, *Config) {
	cmd.Flags().SortFlags = false

	filenames := cmd.Flags().StringArray("config", nil, "config file to load, can be passed multiple times")

	var flagsConfig Config
	cmd.Flags().StringVar(&flagsConfig.LogLevel, "log-level", "", "log level to use")
	cmd.Flags().StringVar(&flagsConfig.LogFormat, "log-format", "", "log formatter to use")

	cmd.Flags().IntVar(&flagsConfig.Server.Port, "port", 0, fmt.Sprintf("loopback port to listen on (default %d)", dirserve.DefaultPort))
	cmd.Flags().StringVar(&flagsConfig.Server.StatusAddr, "status-addr", "", "status server address to listen")
	openFlag := cmd.Flags().VarPF(boolFlag{&flagsConfig.Server.OpenBrowser}, "open", "", "open the default browser once serving")
	openFlag.NoOptDefVal = "true"

	return filenames, &flagsConfig
}

func setup(filenames []string, flagsConfig Config) (Config, *slog.Logger, error) {
	cfg, err := loadConfigs(filenames)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.merge(flagsConfig)

	logger, err := logger(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("configure logger: %w", err)
	}
	return cfg, logger, nil
}

func loadConfigs(files []string) (Config, error) {
	var merged Config

	for _, f := range files {
		cfg, err := loadConfig(f)
		if err != nil {
			return Config{}, fmt.Errorf("load file %s: %w", f, err)
		}
		merged.merge(cfg)
	}

	return merged, nil
}

func loadConfig(file string) (Config, error) {
	var cfg Config

	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec = dec.DisallowUnknownFields()
	err = dec.Decode(&cfg)
	return cfg, err
}

func logger(cfg Config) (*slog.Logger, error) {
	return slogc.New(cfg.LogLevel, cfg.LogFormat)
}

func (c *Config) merge(o Config) {
	c.LogLevel = override(c.LogLevel, o.LogLevel)
	c.LogFormat = override(c.LogFormat, o.LogFormat)

	c.Server.merge(o.Server)
}

func (c *ServerConfig) merge(o ServerConfig) {
	if o.Port != 0 {
		c.Port = o.Port
	}
	c.StatusAddr = override(c.StatusAddr, o.StatusAddr)
	if o.OpenBrowser != nil {
		c.OpenBrowser = o.OpenBrowser
	}
}

func (c ServerConfig) openBrowser() bool {
	return c.OpenBrowser != nil && *c.OpenBrowser
}

// options are validated when applied, by Start or NewController.
func (c ServerConfig) options(logger *slog.Logger) []dirserve.ServerOption {
	var opts []dirserve.ServerOption
	if c.Port != 0 {
		opts = append(opts, dirserve.ServerPort(c.Port))
	}
	return append(opts, dirserve.ServerLogger(logger))
}

func (c ServerConfig) statusAddr() (*net.TCPAddr, error) {
	if c.StatusAddr == "" {
		return nil, nil
	}
	addr, err := net.ResolveTCPAddr("tcp", c.StatusAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve status address: %w", err)
	}
	return addr, nil
}

func (c ServerConfig) baseURL() string {
	port := c.Port
	if port == 0 {
		port = dirserve.DefaultPort
	}
	return fmt.Sprintf("http://%s:%d", dirserve.DefaultHost, port)
}

// boolFlag leaves the config value unset until the flag is passed, so that
// --open=false can override a config file.
type boolFlag struct {
	value **bool
}

func (f boolFlag) String() string {
	if f.value == nil || *f.value == nil {
		return "false"
	}
	return strconv.FormatBool(**f.value)
}

func (f boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f.value = &v
	return nil
}

func (f boolFlag) Type() string {
	return "bool"
}

func override(s, o string) string {
	if o != "" {
		return o
	}
	return s
}

func wrapErr(ws string, fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%s: %w", ws, err)
		}
		return nil
	}
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	runningColor = color.New(color.FgGreen, color.Bold)
	idleColor    = color.New(color.FgYellow)
)

func printError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	errorColor.Fprintf(w, "error: %v\n", err)
}
