package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show dialogs status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Dialogs %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			fmt.Printf("Store:   %s\n", paths.DatabasePath(cfg))

			if cfg.Directory.BaseURL != "" {
				fmt.Printf("Directory: url=%s ttl=%dm\n", cfg.Directory.BaseURL, cfg.Directory.TTLMinutes)
			} else {
				fmt.Println("Directory: (not configured)")
			}

			if syncEnabled(cfg.Sync) {
				fmt.Printf("Sync:    schedule=%q\n", cfg.Sync.Schedule)
			} else {
				fmt.Println("Sync:    disabled")
			}

			if cfg.Channels.IRC != nil {
				ircCfg := cfg.Channels.IRC
				fmt.Printf("IRC:     server=%s nick=%s channels=%s tls=%v\n",
					ircCfg.Server, ircCfg.Nick, strings.Join(ircCfg.Channels, ","), ircCfg.UseTLS)
			} else {
				fmt.Println("IRC:     (not configured)")
			}

			if cfg.Channels.Discord != nil {
				fmt.Printf("Discord: guild=%s channels=%s\n",
					cfg.Channels.Discord.GuildID, strings.Join(cfg.Channels.Discord.Channels, ","))
			} else {
				fmt.Println("Discord: (not configured)")
			}

			if cfg.Admin.Key != "" {
				fmt.Println("Admin:   key configured")
			} else {
				fmt.Println("Admin:   key not set — admin endpoints disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
