package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/opik/tudu/internal/app"
	"github.com/opik/tudu/internal/config"
	"github.com/opik/tudu/internal/plugins"
	"github.com/opik/tudu/internal/storage"
	"github.com/opik/tudu/internal/tui"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitNotFound = 2
)

func main() {
	root := &cobra.Command{
		Use:           "tudu",
		Short:         "A terminal todo list with native plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}
	root.AddCommand(pluginCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitFailure)
	}
}

func runTUI() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := a.Startup(); err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(a), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// bootstrap opens the config and database and builds the app. Plugin
// discovery is left to the caller; the CLI subcommands only need parts of
// the startup sequence.
func bootstrap() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := storage.Init(config.DatabasePath()); err != nil {
		return nil, err
	}
	meta := storage.NewMetadataStore(storage.GetDB())
	panicLog := plugins.NewPanicLog(config.PanicLogPath())
	return app.New(cfg, meta, panicLog), nil
}

func pluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect and manage plugins",
	}
	cmd.AddCommand(pluginListCmd(), pluginStatusCmd(), pluginEnableCmd(true),
		pluginEnableCmd(false), pluginValidateCmd(), pluginConfigCmd())
	return cmd
}

// discoverManager runs one-shot discovery for the CLI surface.
func discoverManager() (*plugins.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	manager := plugins.NewManager(config.PluginsDir(), cfg)
	if err := manager.Discover(); err != nil {
		return nil, err
	}
	return manager, nil
}

func pluginListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := discoverManager()
			if err != nil {
				return err
			}
			for _, info := range manager.List() {
				version := "?"
				if info.Manifest != nil {
					version = info.Manifest.Version
				}
				state := "enabled"
				if !info.Enabled {
					state = "disabled"
				}
				if info.Err != "" {
					state += ", unavailable"
				}
				fmt.Printf("%-20s %-10s %s\n", info.Name, version, state)
			}
			return nil
		},
	}
}

func pluginStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show diagnostics for one plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := discoverManager()
			if err != nil {
				return err
			}
			info := manager.Get(args[0])
			if info == nil {
				fmt.Fprintf(os.Stderr, "plugin %s not found\n", args[0])
				os.Exit(exitNotFound)
			}
			fmt.Printf("Name:      %s\n", info.Name)
			fmt.Printf("Directory: %s\n", info.Dir)
			fmt.Printf("Library:   %s\n", info.LibraryPath)
			fmt.Printf("Enabled:   %t\n", info.Enabled)
			fmt.Printf("Available: %t\n", info.Available)
			if info.Manifest != nil {
				fmt.Printf("Version:   %s\n", info.Manifest.Version)
				fmt.Printf("About:     %s\n", info.Manifest.Description)
			}
			if info.Err != "" {
				fmt.Printf("Error:     %s\n", info.Err)
				os.Exit(exitFailure)
			}
			return nil
		},
	}
}

func pluginEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <name>", "Enable a plugin"
	if !enable {
		use, short = "disable <name>", "Disable a plugin"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := discoverManager()
			if err != nil {
				return err
			}
			if manager.Get(args[0]) == nil {
				fmt.Fprintf(os.Stderr, "plugin %s not found\n", args[0])
				os.Exit(exitNotFound)
			}
			if enable {
				return manager.Enable(args[0])
			}
			return manager.Disable(args[0])
		},
	}
}

func pluginValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <name>",
		Short: "Load a plugin and validate its configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := discoverManager()
			if err != nil {
				return err
			}
			info := manager.Get(args[0])
			if info == nil {
				fmt.Fprintf(os.Stderr, "plugin %s not found\n", args[0])
				os.Exit(exitNotFound)
			}
			if info.Err != "" {
				fmt.Fprintln(os.Stderr, info.Err)
				os.Exit(exitFailure)
			}

			panicLog := plugins.NewPanicLog(config.PanicLogPath())
			lp, err := plugins.LoadFromDirectory(info.Dir, info.Name, panicLog)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			schema, err := lp.ConfigSchema()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			if _, err := plugins.ReadConfigFile(info.Name, schema, config.PluginConfigPath(info.Name)); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			fmt.Printf("plugin %s: OK\n", info.Name)
			return nil
		},
	}
}

func pluginConfigCmd() *cobra.Command {
	var initTemplate bool
	cmd := &cobra.Command{
		Use:   "config <name>",
		Short: "Show (or initialize) a plugin's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := discoverManager()
			if err != nil {
				return err
			}
			info := manager.Get(args[0])
			if info == nil {
				fmt.Fprintf(os.Stderr, "plugin %s not found\n", args[0])
				os.Exit(exitNotFound)
			}

			path := config.PluginConfigPath(info.Name)
			fmt.Printf("Config path: %s\n", path)
			if _, err := os.Stat(path); err == nil {
				fmt.Println("Status:      present")
			} else {
				fmt.Println("Status:      missing")
			}

			if !initTemplate {
				return nil
			}
			panicLog := plugins.NewPanicLog(config.PanicLogPath())
			lp, err := plugins.LoadFromDirectory(info.Dir, info.Name, panicLog)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			schema, err := lp.ConfigSchema()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			if err := plugins.WriteTemplate(info.Name, schema, path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			fmt.Println("Template written.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&initTemplate, "init", false, "create the config directory and write a schema-derived template")
	return cmd
}
