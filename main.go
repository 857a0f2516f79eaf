package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type runOptions struct {
	configPath string
	headless   bool
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:           "robotorders",
		Short:         "Place the RobotSpareBin order batch and archive the receipts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderRobots(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run the browser without a window")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable detailed debug logging")
	return cmd
}

func main() {
	if err := InitLocale(); err != nil {
		log.Printf("Warning: Locale initialization failed, using message keys: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red(T("batch_failed"), err)
		stop()
		os.Exit(1)
	}
}

func runOrderRobots(ctx context.Context, opts *runOptions) error {
	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.headless {
		config.Headless = true
	}
	if opts.debug {
		config.DebugMode = true
	}

	logger, err := NewLogger(config.DebugMode, config.LogFile, zapcore.Lock(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	printBanner(config, opts.configPath)

	session := NewSession(config, logger)
	defer session.Close()

	if err := session.Launch(); err != nil {
		return fmt.Errorf("failed to setup browser: %w", err)
	}

	task := NewOrderRobotsTask(config, session.Page(), session.Renderer(), logger)
	result, err := task.Run(ctx)
	if err != nil {
		if !session.isBrowserAlive() {
			fmt.Println(T("browser_closed_by_user"))
		}
		logger.Error("Batch failed", zap.Error(err))
		return err
	}

	fmt.Println()
	color.Green(T("batch_completed"), len(result.Orders), result.ArchivePath)
	return nil
}

func printBanner(config *Config, configPath string) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-57s ║\n", T("banner_title"))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf(T("config_loaded")+"\n", configPath)

	if config.DebugMode {
		fmt.Println(T("debug_mode"))
	}
	if config.Headless {
		fmt.Println(T("headless_mode"))
	}
	fmt.Println()
}
