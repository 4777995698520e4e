package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/config"
)

var (
	forceInit       bool
	initEndpoint    string
	initAPIURL      string
	initMergePolicy string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize blitzdash configuration",
	Long: `Create a new blitzdash configuration file at ~/.config/blitzdash/config.yml
with sensible defaults. Point endpoint and api_url at your node, then start the dashboard.

Pass --endpoint, --api-url or --merge-policy to write those values instead of
the defaults:

  blitzdash init --endpoint ws://raspiblitz.local:8080 --api-url http://raspiblitz.local:8081`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		custom := flags.Changed("endpoint") || flags.Changed("api-url") || flags.Changed("merge-policy")

		if custom {
			cfg := config.Default()
			if flags.Changed("endpoint") {
				cfg.Endpoint = initEndpoint
			}
			if flags.Changed("api-url") {
				cfg.APIURL = initAPIURL
			}
			if flags.Changed("merge-policy") {
				cfg.MergePolicy = initMergePolicy
			}
			if err := config.InitConfigFrom(cfg, forceInit); err != nil {
				return err
			}
		} else if err := config.InitConfig(forceInit); err != nil {
			return err
		}

		path, _ := config.GetConfigPath()

		if forceInit {
			fmt.Printf("✓ Configuration reset at %s\n", path)
		} else {
			fmt.Printf("✓ Configuration initialized at %s\n", path)
		}

		if !custom {
			fmt.Println("\nEdit the config file to point at your node, then run:")
		} else {
			fmt.Println("\nStart the dashboard with:")
		}
		fmt.Println("  blitzdash")
		fmt.Println("\nNo node at hand? Start the mock backend first:")
		fmt.Println("  blitzdash mock")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite existing configuration")
	initCmd.Flags().StringVar(&initEndpoint, "endpoint", config.DefaultEndpoint, "status channel address (ws:// or wss://)")
	initCmd.Flags().StringVar(&initAPIURL, "api-url", config.DefaultAPIURL, "node API address (http:// or https://)")
	initCmd.Flags().StringVar(&initMergePolicy, "merge-policy", config.DefaultMergePolicy, "patch or replace")
	rootCmd.AddCommand(initCmd)
}
