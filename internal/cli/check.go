package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/cloud/providers"
	internalhttp "github.com/rescale/archive-uploader/internal/http"
)

// newCheckCmd creates the 'check' command.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and test the backend credentials",
		Long: `Validate the configuration file and make one authenticated request to the
configured backend. Nothing is uploaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			log := GetLogger()
			ctx := commandContext(cmd)

			client, err := providers.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create %s client: %w", cfg.Backend.Type, err)
			}
			if closer, ok := client.(io.Closer); ok {
				defer closer.Close()
			}

			if internalhttp.ProxyActive(cfg.Proxy) {
				fmt.Fprintf(out, "Proxy: %s %s:%d\n", cfg.Proxy.Mode, cfg.Proxy.Host, cfg.Proxy.Port)
			}
			fmt.Fprintf(out, "Testing %s backend...\n", client.Name())
			if err := client.Check(ctx); err != nil {
				return fmt.Errorf("%s backend check failed: %w", client.Name(), err)
			}
			fmt.Fprintf(out, "✓ %s backend reachable, credentials accepted\n", client.Name())
			return nil
		},
	}
}
