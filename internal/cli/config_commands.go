package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage archive-uploader configuration",
		Long: `Configuration management commands for archive-uploader.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile), nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for archive-uploader.

The configuration is saved to ~/.config/archive-uploader/config.ini
(or the path given with --config) with owner-only permissions.

Use --force to overwrite an existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := config.Load(path)
			if err != nil {
				cfg = config.NewConfig()
			}

			fmt.Fprintln(out, "archive-uploader Configuration Setup")
			fmt.Fprintln(out, "====================================")
			fmt.Fprintln(out)

			runConfigPrompts(newPrompter(cmd.InOrStdin(), out), cfg)

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "\nWarning: %v\n", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: archive-uploader check")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// runConfigPrompts fills cfg from answers, offering current values as defaults.
func runConfigPrompts(p *prompter, cfg *config.Config) {
	cfg.Uploader.Author = p.ask("Default author", cfg.Uploader.Author)
	cfg.Uploader.Collection = p.ask("Collection", cfg.Uploader.Collection)
	cfg.Uploader.Language = p.ask("Language", cfg.Uploader.Language)
	cfg.Uploader.Workers = p.askInt("Files uploaded at once", cfg.Uploader.Workers, 1, constants.MaxWorkers)

	fmt.Fprintln(p.out)
	cfg.Backend.Type = p.askChoice("Backend", cfg.Backend.Type,
		[]string{config.BackendArchive, config.BackendS3, config.BackendAzure, config.BackendGCS})

	switch cfg.Backend.Type {
	case config.BackendArchive:
		fmt.Fprintln(p.out, "Keys are listed at https://archive.org/account/s3.php")
		cfg.Archive.Endpoint = p.ask("Endpoint", cfg.Archive.Endpoint)
		cfg.Archive.AccessKey = p.ask("Access key", cfg.Archive.AccessKey)
		cfg.Archive.SecretKey = p.askSecret("Secret key", cfg.Archive.SecretKey)
	case config.BackendS3:
		cfg.S3.Bucket = p.ask("Bucket", cfg.S3.Bucket)
		cfg.S3.Region = p.ask("Region", cfg.S3.Region)
		cfg.S3.Endpoint = p.ask("Endpoint (empty for AWS)", cfg.S3.Endpoint)
		cfg.S3.AccessKey = p.ask("Access key (empty for the AWS credential chain)", cfg.S3.AccessKey)
		if cfg.S3.AccessKey != "" {
			cfg.S3.SecretKey = p.askSecret("Secret key", cfg.S3.SecretKey)
		}
	case config.BackendAzure:
		cfg.Azure.ContainerURL = p.askSecret("Container SAS URL", cfg.Azure.ContainerURL)
	case config.BackendGCS:
		cfg.GCS.Bucket = p.ask("Bucket", cfg.GCS.Bucket)
		cfg.GCS.CredentialsFile = p.ask("Service account JSON (empty for default credentials)", cfg.GCS.CredentialsFile)
	}

	fmt.Fprintln(p.out)
	if !p.confirm("Configure proxy?", false) {
		cfg.Proxy = config.ProxyConfig{Mode: "no-proxy"}
		return
	}
	cfg.Proxy.Mode = p.askChoice("Proxy mode", "system", []string{"no-proxy", "system", "basic", "ntlm"})
	if cfg.Proxy.Mode == "basic" || cfg.Proxy.Mode == "ntlm" {
		cfg.Proxy.Host = p.ask("Proxy host", cfg.Proxy.Host)
		port := cfg.Proxy.Port
		if port == 0 {
			port = 8080
		}
		cfg.Proxy.Port = p.askInt("Proxy port", port, 1, 65535)
		cfg.Proxy.User = p.ask("Proxy user", cfg.Proxy.User)
		if cfg.Proxy.User != "" {
			cfg.Proxy.Password = p.askSecret("Proxy password", cfg.Proxy.Password)
		}
		cfg.Proxy.NoProxy = p.ask("Hosts to bypass (comma-separated)", cfg.Proxy.NoProxy)
	}
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings with secrets masked.

Values come from the configuration file, then the IA_ACCESS_KEY and
IA_SECRET_KEY environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg.Redacted())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

func printConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Uploader:")
	fmt.Fprintf(out, "  Author:         %s\n", orNotSet(cfg.Uploader.Author))
	fmt.Fprintf(out, "  Collection:     %s\n", cfg.Uploader.Collection)
	fmt.Fprintf(out, "  Language:       %s\n", cfg.Uploader.Language)
	fmt.Fprintf(out, "  License:        %s\n", cfg.Uploader.LicenseURL)
	fmt.Fprintf(out, "  Processed dir:  %s\n", cfg.Uploader.ProcessedDir)
	fmt.Fprintf(out, "  Progress file:  %s\n", cfg.ProgressFilePath(progressFile))
	fmt.Fprintf(out, "  Log file:       %s\n", cfg.LogFilePath(logFile))
	fmt.Fprintf(out, "  Workers:        %d\n", cfg.Uploader.Workers)
	fmt.Fprintf(out, "  File timeout:   %s\n", cfg.FileTimeout())
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Backend: %s\n", cfg.Backend.Type)
	switch cfg.Backend.Type {
	case config.BackendS3:
		fmt.Fprintf(out, "  Bucket:     %s\n", orNotSet(cfg.S3.Bucket))
		fmt.Fprintf(out, "  Region:     %s\n", cfg.S3.Region)
		if cfg.S3.Endpoint != "" {
			fmt.Fprintf(out, "  Endpoint:   %s\n", cfg.S3.Endpoint)
		}
		fmt.Fprintf(out, "  Access key: %s\n", orNotSet(cfg.S3.AccessKey))
		fmt.Fprintf(out, "  Secret key: %s\n", orNotSet(cfg.S3.SecretKey))
	case config.BackendAzure:
		fmt.Fprintf(out, "  Container:  %s\n", orNotSet(cfg.Azure.ContainerURL))
	case config.BackendGCS:
		fmt.Fprintf(out, "  Bucket:      %s\n", orNotSet(cfg.GCS.Bucket))
		fmt.Fprintf(out, "  Credentials: %s\n", orDefault(cfg.GCS.CredentialsFile, "<application default>"))
	default:
		fmt.Fprintf(out, "  Endpoint:   %s\n", cfg.Archive.Endpoint)
		fmt.Fprintf(out, "  Access key: %s\n", orNotSet(cfg.Archive.AccessKey))
		fmt.Fprintf(out, "  Secret key: %s\n", orNotSet(cfg.Archive.SecretKey))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.Proxy.Mode)
	if cfg.Proxy.Host != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.Proxy.Host)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.Proxy.Port)
	}
	fmt.Fprintln(out)
}

func orNotSet(s string) string {
	return orDefault(s, "<not set>")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
