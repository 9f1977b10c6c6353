package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zberg/go-infinity/internal/config"
	"github.com/zberg/go-infinity/pkg/infinity"
)

var (
	configPath string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ~/.config/bryant/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	monitorCmd.Flags().Int("interval", 60, "polling interval in seconds")
	monitorCmd.Flags().String("csv", "", "CSV file to append to (default from config)")
	logCmd.Flags().String("csv", "", "CSV file to append to (default from config)")

	setTempCmd.Flags().String("zone", "1", "zone id or alias from the config's zones section")
	setTempCmd.Flags().Float64("heat", 0, "heat setpoint in °F")
	setTempCmd.Flags().Float64("cool", 0, "cool setpoint in °F")
	setTempCmd.Flags().String("hold-until", "", "hold until time (HH:MM), empty for an indefinite hold")

	setModeCmd.Flags().String("mode", "", "system mode: off, heat, cool, auto, or fanonly")
	_ = setModeCmd.MarkFlagRequired("mode")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(setTempCmd)
	rootCmd.AddCommand(setModeCmd)
}

// setup loads the config file and builds a logged-out client. Login happens
// lazily on the first call.
func setup() (config.Config, *infinity.Client, *zap.SugaredLogger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger := newLogger(verbose)
	client, err := infinity.NewClient(cfg.Username, cfg.Password, infinity.WithLogger(logger))
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, client, logger, nil
}

func firstSystem(ctx context.Context, client *infinity.Client) (string, error) {
	serials, err := client.ListSystems(ctx)
	if err != nil {
		return "", err
	}
	if len(serials) == 0 {
		return "", errors.New("no systems found for this account")
	}
	return serials[0], nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current status of all systems",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, _, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		serials, err := client.ListSystems(ctx)
		if err != nil {
			return err
		}
		if len(serials) == 0 {
			return errors.New("no systems found for this account")
		}

		for _, serial := range serials {
			sys, err := client.FetchStatus(ctx, serial)
			if err != nil {
				return err
			}
			printSystem(sys)
		}
		return nil
	},
}

func printSystem(sys *infinity.System) {
	fmt.Printf("\n=== System: %s ===\n", sys.Serial)
	fmt.Printf("Outdoor Temperature: %.1f°F\n", sys.OutdoorTemp)
	fmt.Printf("Mode: %s\n", sys.Mode)
	fmt.Printf("\nZones (%d):\n", len(sys.Zones))
	for _, z := range sys.Zones {
		fmt.Printf("  %s: %.1f°F / %.0f%% RH | Activity: %s | Heat: %.1f°F Cool: %.1f°F | Fan: %s | Status: %s\n",
			z.Name, z.Temp, z.Humidity, z.Activity, z.HeatSetpoint, z.CoolSetpoint, z.Fan, z.Status)
		if z.Hold {
			until := z.HoldUntil
			if until == "" {
				until = "indefinite"
			}
			fmt.Printf("    Hold active until: %s\n", until)
		}
	}
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Append one CSV row with the current readings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, _, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		serial, err := firstSystem(ctx, client)
		if err != nil {
			return err
		}
		sys, err := client.FetchStatus(ctx, serial)
		if err != nil {
			return err
		}

		csvPath, _ := cmd.Flags().GetString("csv")
		if csvPath == "" {
			csvPath = cfg.CSVPath
		}
		return appendCSV(csvPath, sys)
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll status at a fixed interval and append CSV rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, logger, err := setup()
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetInt("interval")
		if interval <= 0 {
			return errors.New("interval must be positive")
		}
		csvPath, _ := cmd.Flags().GetString("csv")
		if csvPath == "" {
			csvPath = cfg.CSVPath
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serial, err := firstSystem(ctx, client)
		if err != nil {
			return err
		}

		fmt.Printf("Monitoring system %s every %d seconds. Press Ctrl+C to stop.\n", serial, interval)

		poller := &infinity.Poller{
			Source:   client,
			Serial:   serial,
			Interval: time.Duration(interval) * time.Second,
			Logger:   logger,
		}
		err = poller.Run(ctx, func(sys *infinity.System, err error) {
			if err != nil {
				return // already logged by the poller
			}
			if err := appendCSV(csvPath, sys); err != nil {
				logger.Errorw("csv append failed", "path", csvPath, "error", err)
				return
			}
			fmt.Printf("Logged: %s | Outdoor: %.1f°F\n",
				time.Now().Format("01-02-2006 15:04"), sys.OutdoorTemp)
		})
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nStopped.")
			return nil
		}
		return err
	},
}

var setTempCmd = &cobra.Command{
	Use:   "set-temp",
	Short: "Change a zone's setpoints with a hold",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, _, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var req infinity.SetpointRequest
		if cmd.Flags().Changed("heat") {
			v, _ := cmd.Flags().GetFloat64("heat")
			req.Heat = &v
		}
		if cmd.Flags().Changed("cool") {
			v, _ := cmd.Flags().GetFloat64("cool")
			req.Cool = &v
		}
		req.HoldUntil, _ = cmd.Flags().GetString("hold-until")

		zoneArg, _ := cmd.Flags().GetString("zone")
		zoneID := cfg.ResolveZone(zoneArg)

		serial, err := firstSystem(ctx, client)
		if err != nil {
			return err
		}

		if err := client.SetTemperature(ctx, serial, zoneID, req); err != nil {
			return err
		}
		fmt.Printf("Temperature set successfully for zone %s\n", zoneID)
		return nil
	},
}

var setModeCmd = &cobra.Command{
	Use:   "set-mode",
	Short: "Change the system operating mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, _, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		mode, _ := cmd.Flags().GetString("mode")

		serial, err := firstSystem(ctx, client)
		if err != nil {
			return err
		}

		if err := client.SetMode(ctx, serial, mode); err != nil {
			return err
		}
		fmt.Printf("Mode set to %s\n", mode)
		return nil
	},
}
