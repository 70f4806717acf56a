package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"breathkit/internal/bootstrap"
	breathdto "breathkit/internal/modules/breath/dto"
	calibrationdto "breathkit/internal/modules/calibration/dto"
	devicedto "breathkit/internal/modules/device/dto"
	"breathkit/internal/platform/config"
	"breathkit/internal/platform/logging"
	uiapp "breathkit/internal/ui/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "breathkit",
		Short:         "Breath biofeedback trainer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", ".", "directory holding breathkit.yaml, drivers and training state")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level: trace|debug|info|warn|error")

	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newTrainCmd(flags))
	root.AddCommand(newCalibrateCmd(flags))
	root.AddCommand(newTargetsCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	root.AddCommand(newDeviceCmd(flags))
	return root
}

// loadApp builds the application. Logs go to the configured log file, or to
// stderr unless quiet is set.
func loadApp(flags *globalFlags, quiet bool) (*bootstrap.App, error) {
	cfg, err := config.New(flags.dataDir)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	logger, err := newLogger(cfg, quiet)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg, logger)
}

func newLogger(cfg config.Config, quiet bool) (hclog.Logger, error) {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	} else if quiet {
		return logging.Discard(), nil
	}
	return logging.New(cfg.LogLevel, out), nil
}

// ─── source flags ─────────────────────────────────────────────────────────────

type sourceFlags struct {
	kind   string
	file   string
	loop   bool
	driver string
	values []float64
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.kind, "source", "driver", "pressure source: recording|driver|script|constant")
	cmd.Flags().StringVar(&s.file, "file", "", "recording file for --source recording")
	cmd.Flags().BoolVar(&s.loop, "loop", false, "restart the recording or script at its end")
	cmd.Flags().StringVar(&s.driver, "driver", "", "driver name for --source driver")
	cmd.Flags().Float64SliceVar(&s.values, "values", nil, "pressure values for --source script|constant")
}

func (s sourceFlags) input() devicedto.OpenInput {
	return devicedto.OpenInput{Kind: s.kind, Path: s.file, Loop: s.loop, Driver: s.driver, Values: s.values}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ─── tui ──────────────────────────────────────────────────────────────────────

func newTUICmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	var sets, breaths uint
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the training dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := loadApp(flags, true)
			if err != nil {
				return err
			}
			defer app.Close()
			return bootstrap.RunTUI(app, uiapp.Options{
				Begin: breathdto.BeginInput{
					Device:        source.input(),
					Sets:          sets,
					BreathsPerSet: breaths,
					AutoStart:     autoStart,
				},
			})
		},
	}
	source.register(cmd)
	cmd.Flags().UintVar(&sets, "sets", 0, "override the saved number of sets")
	cmd.Flags().UintVar(&breaths, "breaths", 0, "override the saved breaths per set")
	cmd.Flags().BoolVar(&autoStart, "auto-start", true, "start each set without waiting for a key press")
	return cmd
}

// ─── train ────────────────────────────────────────────────────────────────────

func newTrainCmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	var sets, breaths uint
	var autoStart, realtime, verbose bool
	var maxDuration time.Duration

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run a headless training until it completes or is interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signalContext()
			defer stop()

			out := cmd.OutOrStdout()
			summary, err := app.TrainingCLI.Train(ctx, breathdto.RunInput{
				Begin: breathdto.BeginInput{
					Device:        source.input(),
					Sets:          sets,
					BreathsPerSet: breaths,
					AutoStart:     autoStart,
				},
				FrameInterval: app.Config.FrameInterval,
				Realtime:      realtime,
				MaxDuration:   maxDuration,
				OnFrame: func(frame breathdto.FrameOutput) {
					printFrame(out, frame, verbose)
				},
			})
			if err != nil {
				return err
			}
			printSummary(out, summary)
			return nil
		},
	}
	source.register(cmd)
	cmd.Flags().UintVar(&sets, "sets", 0, "override the saved number of sets")
	cmd.Flags().UintVar(&breaths, "breaths", 0, "override the saved breaths per set")
	cmd.Flags().BoolVar(&autoStart, "auto-start", true, "start each set as soon as the previous one completes")
	cmd.Flags().BoolVar(&realtime, "realtime", true, "pace frames with the wall clock instead of replaying as fast as possible")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "stop after this much training time (0 = no limit)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every breath, not only session events")
	return cmd
}

func printFrame(out io.Writer, frame breathdto.FrameOutput, verbose bool) {
	if verbose {
		for _, b := range frame.Breaths {
			_, _ = fmt.Fprintf(out, "breath %d\t%.2fs\t%.0f%%\tquality=%d\tfull=%t\n", b.Count, b.Length, b.Percentage*100, b.Quality, b.Full)
		}
	}
	for _, e := range frame.Events {
		switch e.Kind {
		case "set_complete":
			_, _ = fmt.Fprintf(out, "%s\tset=%d\tbreaths=%d\tlongest=%.2fs\n", e.Kind, e.Set, e.Breath, e.BreathLength)
		case "set_started", "session_paused", "session_resumed":
			_, _ = fmt.Fprintf(out, "%s\tset=%d\n", e.Kind, e.Set)
		default:
			_, _ = fmt.Fprintln(out, e.Kind)
		}
	}
}

func printSummary(out io.Writer, s breathdto.SummaryOutput) {
	_, _ = fmt.Fprintf(out, "session %s completed=%t sets=%d/%d breaths=%d good=%d bad=%d pauses=%d longest=%.2fs duration=%.0fs\n",
		s.ID, s.Completed, s.SetsCompleted, s.Sets, s.BreathCount, s.GoodBreaths, s.BadBreaths, s.Pauses, s.LongestBreath, s.DurationSeconds)
	if s.NotePath != "" {
		_, _ = fmt.Fprintf(out, "note=%s\n", s.NotePath)
	}
}

// ─── calibrate ────────────────────────────────────────────────────────────────

func newCalibrateCmd(flags *globalFlags) *cobra.Command {
	calibrate := &cobra.Command{Use: "calibrate", Short: "Capture or edit the calibration profile"}

	var source sourceFlags
	var steps int
	var realtime bool
	var timeout time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Capture maximum pressure and breath length from a few long exhales",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signalContext()
			defer stop()

			if steps <= 0 {
				steps = app.Config.CalibrationSteps
			}
			out := cmd.OutOrStdout()
			profile, err := app.CalibrationCLI.Run(ctx, calibrationdto.CalibrateInput{
				Device:        source.input(),
				FrameInterval: app.Config.FrameInterval,
				Realtime:      realtime,
				Timeout:       timeout,
				Steps:         steps,
				MinPressure:   app.Config.MinBreathThreshold,
				OnProgress: func(p calibrationdto.Progress) {
					_, _ = fmt.Fprintf(out, "step %d/%d\t%s\t%.2fs\n", p.Step, p.RequiredSteps, p.Status, p.BreathLength)
				},
			})
			if err != nil {
				return err
			}
			printProfile(out, profile)
			return nil
		},
	}
	source.register(runCmd)
	runCmd.Flags().IntVar(&steps, "steps", 0, "number of exhales to average (default from config)")
	runCmd.Flags().BoolVar(&realtime, "realtime", true, "pace frames with the wall clock")
	runCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long (0 = no limit)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved calibration profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			profile, err := app.CalibrationCLI.Show(context.Background())
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}

	var maxPressure, maxBreathLength float64
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Save a calibration profile by hand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			profile, err := app.CalibrationCLI.Set(context.Background(), maxPressure, maxBreathLength)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
	setCmd.Flags().Float64Var(&maxPressure, "max-pressure", 0, "maximum normalized pressure")
	setCmd.Flags().Float64Var(&maxBreathLength, "max-breath-length", 0, "longest comfortable exhale in seconds")
	_ = setCmd.MarkFlagRequired("max-pressure")
	_ = setCmd.MarkFlagRequired("max-breath-length")

	calibrate.AddCommand(runCmd, showCmd, setCmd)
	return calibrate
}

func printProfile(out io.Writer, p calibrationdto.ProfileOutput) {
	_, _ = fmt.Fprintf(out, "max_pressure=%.3f max_breath_length=%.2fs calibrated_on=%s\n",
		p.MaxPressure, p.MaxBreathLength, p.CalibratedOn.Format(time.RFC3339))
}

// ─── targets ──────────────────────────────────────────────────────────────────

func newTargetsCmd(flags *globalFlags) *cobra.Command {
	targets := &cobra.Command{Use: "targets", Short: "Show or change the session targets"}

	targets.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			out, err := app.TrainingCLI.Targets(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sets=%d breaths_per_set=%d\n", out.Sets, out.BreathsPerSet)
			return nil
		},
	})

	var sets, breaths uint
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Save new targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			out, err := app.TrainingCLI.SetTargets(context.Background(), sets, breaths)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sets=%d breaths_per_set=%d\n", out.Sets, out.BreathsPerSet)
			return nil
		},
	}
	setCmd.Flags().UintVar(&sets, "sets", 0, "number of sets")
	setCmd.Flags().UintVar(&breaths, "breaths", 0, "breaths per set")
	_ = setCmd.MarkFlagRequired("sets")
	_ = setCmd.MarkFlagRequired("breaths")

	targets.AddCommand(setCmd)
	return targets
}

// ─── history ──────────────────────────────────────────────────────────────────

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	var show string
	var raw bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded trainings or show one session note",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			out := cmd.OutOrStdout()

			if show != "" {
				note, err := app.TrainingCLI.Note(context.Background(), show)
				if err != nil {
					return err
				}
				if raw {
					_, _ = fmt.Fprint(out, note.Markdown)
					return nil
				}
				rendered, err := glamour.Render(note.Markdown, "dark")
				if err != nil {
					return fmt.Errorf("render note: %w", err)
				}
				_, _ = fmt.Fprint(out, rendered)
				return nil
			}

			sessions, err := app.TrainingCLI.History(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(out, "no trainings")
				return nil
			}
			for _, s := range sessions {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%d/%d sets\t%d breaths\tcompleted=%t\n",
					s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.SetsCompleted, s.Sets, s.BreathCount, s.Completed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of trainings to list (0 = all)")
	cmd.Flags().StringVar(&show, "show", "", "print the note of one training by id")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the note as markdown instead of rendering it")
	return cmd
}

// ─── device ───────────────────────────────────────────────────────────────────

func newDeviceCmd(flags *globalFlags) *cobra.Command {
	device := &cobra.Command{Use: "device", Short: "Inspect pressure drivers"}

	device.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered drivers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			drivers, err := app.DeviceCLI.List(context.Background())
			if err != nil {
				return err
			}
			if len(drivers) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no drivers")
				return nil
			}
			for _, d := range drivers {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tenabled=%t\traw_hid=%t\t%s\n", d.Name, d.Version, d.Enabled, d.RawHID, d.Binary)
			}
			return nil
		},
	})

	device.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify driver binaries, checksums and startup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			results, err := app.DeviceCLI.Check(context.Background())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no drivers")
				return nil
			}
			for _, r := range results {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tbinary=%t\tchecksum=%t\tlifecycle=%t",
					r.Name, r.BinaryReachable, r.ChecksumValid, r.LifecycleOK)
				if r.LifecycleOK {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\tmodel=%s\trate=%dHz", r.Model, r.SampleRateHz)
				}
				if r.Error != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\terror=%s", r.Error)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	})
	return device
}
