// Command evse-controller runs the charging station controller and bridges
// it to the host over MQTT.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/evse-controller/internal/config"
	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "evse-controller",
		Short: "IEC 61851 charging station controller",
		Long: `evse-controller drives the control pilot, the contactor and the status LED
of an AC charging station and publishes state changes to MQTT.

The controller exits non-zero when a factory reset or the communication
watchdog requests a restart; run it under a supervisor that restarts it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (built-in defaults when empty)")

	root.AddCommand(
		newRunCmd(&configPath),
		newPrintJumperCmd(&configPath),
		newFactoryResetCmd(&configPath),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var broker, httpAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("broker") {
				cfg.MQTT.Broker = broker
			}
			if cmd.Flags().Changed("http") {
				cfg.HTTPAddr = httpAddr
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&broker, "broker", config.DefaultBroker, "MQTT broker address (overrides the config file)")
	cmd.Flags().StringVar(&httpAddr, "http", config.DefaultHTTPAddr, "HTTP status address, empty to disable (overrides the config file)")
	return cmd
}

func newPrintJumperCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "print-jumper",
		Short: "Read the current configuration jumper and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			j, err := hal.ReadJumper(cfg.GPIO.Chip, cfg.GPIO.Jumper0, cfg.GPIO.Jumper1)
			if err != nil {
				return fmt.Errorf("read jumper: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatJumper(j, cfg.SoftwareCurrent))
			return nil
		},
	}
}

func formatJumper(j hal.Jumper, softwareMA uint32) string {
	if !j.Configured() {
		return fmt.Sprintf("jumper: %s (charging disabled)", j)
	}
	return fmt.Sprintf("jumper: %s (%d mA)", j, j.Current(softwareMA))
}

func newFactoryResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "factory-reset",
		Short: "Erase the stored device configuration (run with the controller stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store := storage.NewFileStore(cfg.StoragePath)
			if err := storage.EraseConfig(store); err != nil {
				return fmt.Errorf("factory reset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration erased in %s\n", store.Path())
			return nil
		},
	}
}
