// Command uvloopctl is a small diagnostic CLI around the uvloop event loop:
// it runs a loop for a configurable duration, configured by an optional YAML
// file, and prints how long it ran (no handle or metrics state is reported),
// grounded on the cobra + yaml.v3
// command structure the ChuLiYu-raft-recovery example repo uses for its
// own run/status commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nanouv/uvloop"
)

// Config is the YAML-loadable configuration for the run command.
type Config struct {
	ThreadPool struct {
		Size    int `yaml:"size"`
		SlowCap int `yaml:"slow_cap"`
	} `yaml:"thread_pool"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func buildRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:     "uvloopctl",
		Short:   "Diagnostic CLI for the uvloop event loop",
		Version: "0.1.0",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML)")

	root.AddCommand(buildRunCmd(&configFile))
	root.AddCommand(buildVersionCmd())
	return root
}

func buildRunCmd(configFile *string) *cobra.Command {
	var durationMs int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a loop for a fixed duration and print how long it ran",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			return runLoop(cfg, time.Duration(durationMs)*time.Millisecond)
		},
	}
	cmd.Flags().IntVar(&durationMs, "duration-ms", 1000, "how long to run the loop before stopping")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the uvloopctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("uvloopctl 0.1.0")
		},
	}
}

func runLoop(cfg *Config, duration time.Duration) error {
	var opts []uvloop.Option
	if cfg.ThreadPool.Size > 0 {
		opts = append(opts, uvloop.WithThreadPoolSize(cfg.ThreadPool.Size))
	}
	if cfg.ThreadPool.SlowCap > 0 {
		opts = append(opts, uvloop.WithSlowWorkCap(cfg.ThreadPool.SlowCap))
	}
	opts = append(opts, uvloop.WithMetrics(cfg.Metrics.Enabled))

	loop, err := uvloop.New(opts...)
	if err != nil {
		return fmt.Errorf("new loop: %w", err)
	}
	defer loop.Close()

	t := uvloop.NewTimer(loop)
	if err := t.Start(uint64(duration.Milliseconds()), 0, func(*uvloop.Timer) {
		loop.Stop()
	}); err != nil {
		return fmt.Errorf("start timer: %w", err)
	}

	if err := loop.Run(uvloop.RunDefault); err != nil {
		return fmt.Errorf("run loop: %w", err)
	}
	fmt.Printf("loop ran for %s\n", duration)
	return nil
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
