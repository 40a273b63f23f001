package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dygy/gape-select/internal/config"
	"github.com/dygy/gape-select/internal/dispatch"
	"github.com/dygy/gape-select/internal/effect"
	apperrors "github.com/dygy/gape-select/internal/errors"
	"github.com/dygy/gape-select/internal/history"
	"github.com/dygy/gape-select/internal/pipeline"
	"github.com/dygy/gape-select/internal/progress"
	"github.com/dygy/gape-select/internal/server"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gape",
	Short: "Select a guitar effect and send it to the effects board",
	Long: `gape validates effect parameters, encodes them as a 4-byte
selection [tag, p1, p2, p3] and forwards it to the 7-segment display
driver and the signal-path control program.

Effects: delay (1), compressor (2), equalizer (3)`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Validate and encode parameters without sending them",
	Long: `Print the encoded selection for an effect.

Examples:
  gape encode -e delay --time 0.5s --gain 0.5
  gape encode -e compressor -p "Coffee Shop"
  gape encode -e eq --low -3 --mid 0 --high 4dB`,
	RunE: runEncode,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Encode parameters and send them downstream",
	Long: `Encode an effect selection and forward it to every enabled sink
(console, display driver, control program, serial port).

With --hold the command stays in the foreground until interrupted,
then blanks the display and stops the downstream programs.

Examples:
  gape submit -e delay -p "Large Room"
  gape submit -e comp --threshold -12dB --ratio 4 --hold`,
	RunE: runSubmit,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Blank the 7-segment display",
	RunE:  runClear,
}

var presetsCmd = &cobra.Command{
	Use:   "presets [effect]",
	Short: "List presets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPresets,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous submissions",
	RunE:  runHistory,
}

var resendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Send the latest submission again",
	RunE:  runResend,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form",
	Long: `Start the HTTP form and JSON API. Presets are reloaded when the
config file changes.

Example:
  gape serve --port 8080`,
	RunE: runServe,
}

// Flags
var (
	configPath string
	verbose    bool

	effectName string
	presetName string
	delayTime  string
	gain       string
	threshold  string
	ratio      string
	lowBand    string
	midBand    string
	highBand   string
	hold       bool

	clearHistory bool
	port         int
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resendCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Selection flags are shared by encode and submit
	for _, c := range []*cobra.Command{encodeCmd, submitCmd} {
		c.Flags().StringVarP(&effectName, "effect", "e", "", "Effect (delay, compressor, equalizer or 1-3)")
		c.Flags().StringVarP(&presetName, "preset", "p", "", "Preset name or number")
		c.Flags().StringVar(&delayTime, "time", "", "Delay time in seconds (0 to 0.5)")
		c.Flags().StringVar(&gain, "gain", "", "Delay gain (0 to 1)")
		c.Flags().StringVar(&threshold, "threshold", "", "Compressor threshold in dB (up to 6)")
		c.Flags().StringVar(&ratio, "ratio", "", "Compressor ratio (1 to 254)")
		c.Flags().StringVar(&lowBand, "low", "", "Equalizer low band in dB (-10 to 10)")
		c.Flags().StringVar(&midBand, "mid", "", "Equalizer mid band in dB (-10 to 10)")
		c.Flags().StringVar(&highBand, "high", "", "Equalizer high band in dB (-10 to 10)")
		c.MarkFlagRequired("effect")
	}
	submitCmd.Flags().BoolVar(&hold, "hold", false, "Stay running until interrupted, then clear the display")

	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete all recorded submissions")

	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: server.port from config)")
}

// app holds everything a command needs, built from the config file
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Orchestrator
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func setup(rep *progress.Reporter) (*app, error) {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", slog.String("path", cfg.Path), slog.Bool("sudo", cfg.Sudo))

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.HistoryDir)
	if err != nil {
		logger.Warn("history disabled", slog.Any("error", err))
		store = nil
	}

	d := dispatch.FromConfig(cfg, os.Stdout, logger)
	logger.Debug("sinks configured", slog.Any("sinks", d.Sinks()))
	if err := d.Check(); err != nil {
		logger.Warn("downstream program unavailable", slog.Any("error", err))
	}
	if rep != nil {
		source := cfg.Path
		if source == "" {
			source = "built-in defaults"
		}
		rep.Update("Config: %s", source)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline.NewOrchestrator(catalog, d, store, rep),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildRequest() (effect.Request, error) {
	e, err := effect.ParseEffect(effectName)
	if err != nil {
		return effect.Request{}, err
	}
	return effect.NewRequest(e, presetName, map[string]string{
		effect.FieldDelayTime: delayTime,
		effect.FieldGain:      gain,
		effect.FieldThreshold: threshold,
		effect.FieldRatio:     ratio,
		effect.FieldLow:       lowBand,
		effect.FieldMid:       midBand,
		effect.FieldHigh:      highBand,
	}), nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	preset, out, err := catalog.Resolve(req)
	if err != nil {
		return err
	}
	if verbose && preset.Name != "" {
		fmt.Fprintf(os.Stderr, "preset %d %q\n", preset.Number, preset.Name)
	}
	fmt.Println(out)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	rep := progress.NewReporter(os.Stderr, verbose)
	a, err := setup(rep)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.pipeline.Submit(ctx, req)
	if err != nil {
		return reportFailure(cmd, rep, err)
	}
	rep.Done(res.Output)

	if !hold {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Holding selection, press Ctrl+C to clear and exit")
	<-ctx.Done()
	return closePipeline(a)
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := setup(nil)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return a.pipeline.Clear(ctx)
}

func runPresets(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	presets := catalog.All()
	if len(args) == 1 {
		e, err := effect.ParseEffect(args[0])
		if err != nil {
			return err
		}
		presets = catalog.Presets(e)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tEFFECT\tNAME\tVALUES")
	for _, p := range presets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.Number, p.Effect, p.Name, formatValues(p.Effect, p.Values))
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryDir)
	if err != nil {
		return err
	}

	if clearHistory {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared history in %s\n", store.Dir())
		return nil
	}

	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No submissions yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tWHEN\tEFFECT\tPRESET\tOUTPUT")
	for _, r := range records {
		preset := r.Preset
		if preset == "" {
			preset = "-"
		}
		fmt.Fprintf(w, "v%03d\t%s\t%s\t%s\t%s\n", r.Version, r.CreatedAt.Format(time.DateTime), r.Effect, preset, r.Output)
	}
	return w.Flush()
}

func runResend(cmd *cobra.Command, args []string) error {
	rep := progress.NewReporter(os.Stderr, verbose)
	a, err := setup(rep)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.pipeline.Resend(ctx)
	if err != nil {
		return reportFailure(cmd, rep, err)
	}
	rep.Done(res.Output)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(nil)
	if err != nil {
		return err
	}

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv, err := server.New(server.Config{
		Port:       port,
		ConfigPath: a.cfg.Path,
	}, a.pipeline, a.logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Run(ctx)
}

// reportFailure prints a downstream failure with a hint on what to do next.
// Validation errors and an empty history are left for cobra to print.
func reportFailure(cmd *cobra.Command, rep *progress.Reporter, err error) error {
	if errors.Is(err, apperrors.ErrInvalidParameter) || errors.Is(err, apperrors.ErrNoHistory) {
		return err
	}
	cmd.SilenceErrors = true
	rep.Error(err)

	var perr *apperrors.ProcessError
	if errors.As(err, &perr) && !perr.IsRecoverable() {
		rep.Warning("%s is not installed, check its command in %s", perr.Tool, configPath)
	} else {
		rep.Warning("Nothing was recorded; other sinks may already show the new selection")
	}
	return err
}

func closePipeline(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.pipeline.Close(ctx)
}

// formatValues renders preset values in field order
func formatValues(e effect.Effect, values map[string]string) string {
	var s string
	for i, f := range e.Fields() {
		if i > 0 {
			s += ", "
		}
		s += f.Name + "=" + values[f.Name]
	}
	return s
}
