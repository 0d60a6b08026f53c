package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nicholasgasior/officeconv"
	"github.com/nicholasgasior/officeconv/internal/prompt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "OFFICECONV"

// config is the merged view of flags, environment and config file.
type config struct {
	BasePath            string        `mapstructure:"base_path"`
	WorkRoot            string        `mapstructure:"work_root"`
	CacheDir            string        `mapstructure:"cache_dir"`
	InitTimeout         time.Duration `mapstructure:"init_timeout"`
	DownloadDir         string        `mapstructure:"download_dir"`
	LogLevel            string        `mapstructure:"log_level"`
	Interactive         bool          `mapstructure:"interactive"`
	MediaConcurrency    int           `mapstructure:"media_concurrency"`
	DetectCharset       bool          `mapstructure:"detect_charset"`
	DirectTabular       bool          `mapstructure:"direct_tabular"`
	TabularIntermediate string        `mapstructure:"tabular_intermediate"`
	Listen              string        `mapstructure:"listen"`
	PublicURL           string        `mapstructure:"public_url"`
}

type app struct {
	v      *viper.Viper
	cfg    config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	return newAppCmd(&app{v: viper.New()})
}

func newAppCmd(a *app) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "officeconv",
		Short:         "Convert office documents with the X2T engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cfgFile, cmd.Flags(), cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./officeconv.yaml if present)")
	pf.String("base-path", ".", "Deployment base holding wasm/x2t/x2t.wasm (directory or http(s) URL)")
	pf.String("work-root", "", "Host directory for the engine namespace (default: temporary)")
	pf.String("cache-dir", "", "Directory for the compiled engine cache")
	pf.Duration("init-timeout", officeconv.DefaultInitTimeout, "How long to wait for the engine to become ready")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Int("media-concurrency", 8, "Concurrent media reads per conversion")
	pf.Bool("detect-charset", false, "Detect the charset of non-UTF-8 CSV input before falling back to Latin-1")
	pf.Bool("direct-tabular", false, "Try the engine's own CSV reader before the XLSX fallback")
	pf.String("tabular-intermediate", "xlsx", "Spreadsheet format CSV export goes through (xlsx, xls)")

	root.AddCommand(newConvertCmd(a), newExportCmd(a), newServeCmd(a), newVersionCmd())
	return root
}

func (a *app) load(cfgFile string, flags *pflag.FlagSet, stderr io.Writer) error {
	v := a.v
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("download_dir", ".")
	v.SetDefault("interactive", true)
	v.SetDefault("listen", "127.0.0.1:8080")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("officeconv")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" || f.Name == "version" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	if err := v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	logger, err := newLogger(a.cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("Using configuration file", slog.String("path", used))
	}
	return nil
}

// newLogger renders slog records with charmbracelet/log.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "officeconv",
	})
	return slog.New(handler), nil
}

// newConverter builds a Converter from the loaded configuration.
func (a *app) newConverter(blobs officeconv.BlobStore, downloadDir string, interactive bool) *officeconv.Converter {
	opts := []officeconv.Option{
		officeconv.WithLogger(a.logger),
		officeconv.WithBasePath(a.cfg.BasePath),
		officeconv.WithBootstrap(officeconv.NewWASMBootstrap(a.cfg.WorkRoot, a.cfg.CacheDir, a.logger)),
		officeconv.WithInitTimeout(a.cfg.InitTimeout),
		officeconv.WithBlobStore(blobs),
		officeconv.WithDownloadDir(downloadDir),
		officeconv.WithMediaConcurrency(a.cfg.MediaConcurrency),
		officeconv.WithCharsetDetection(a.cfg.DetectCharset),
		officeconv.WithDirectTabular(a.cfg.DirectTabular),
		officeconv.WithTabularIntermediate(a.cfg.TabularIntermediate),
	}
	if interactive && a.cfg.Interactive && prompt.Available() {
		opts = append(opts, officeconv.WithSavePicker(prompt.New(downloadDir)))
	}
	return officeconv.New(opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "officeconv %s\n", version)
		},
	}
}
