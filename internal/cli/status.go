package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/store"
	"github.com/soyeahso/annabot/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show annabot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "annabot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults and environment)")
			}

			fmt.Fprintf(out, "Inference: provider=%s model=%s key=%s\n",
				cfg.Inference.Provider, cfg.Inference.Model, presence(cfg.Inference.APIKey))
			if len(cfg.Inference.Fallbacks) > 0 {
				fmt.Fprintf(out, "           fallbacks=%v\n", cfg.Inference.Fallbacks)
			}
			switch cfg.Store.Driver {
			case "supabase":
				fmt.Fprintf(out, "Store:     supabase url=%s key=%s\n", cfg.Store.SupabaseURL, presence(cfg.Store.SupabaseKey))
			default:
				fmt.Fprintf(out, "Store:     %s path=%s\n", cfg.Store.Driver, paths.SQLiteStore(cfg))
			}
			fmt.Fprintf(out, "Dedupe:    %s ttl=%s\n", cfg.Dedupe.Driver, cfg.Dedupe.TTL())
			fmt.Fprintf(out, "Routing:   trigger=%q history=%d memories=%d\n",
				cfg.Routing.TriggerPrefix, cfg.Routing.HistoryLimit, cfg.Routing.MemoryLimit)
			if cfg.Gateway.Enabled {
				fmt.Fprintf(out, "Gateway:   %s\n", cfg.Gateway.Addr)
			} else {
				fmt.Fprintln(out, "Gateway:   disabled")
			}

			fmt.Fprintf(out, "Device:    %s\n", deviceSummary(cmd.Context(), cfg))

			issues := append(config.Validate(&cfg), config.MissingCredentials(&cfg)...)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nIssues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}

	return cmd
}

// deviceSummary reports the paired device recorded by the last run.
func deviceSummary(ctx context.Context, cfg config.Config) string {
	path := paths.SQLiteStore(cfg)
	if _, err := os.Stat(path); err != nil {
		return "not paired"
	}
	db, err := store.Open(path, log)
	if err != nil {
		return fmt.Sprintf("unknown (%v)", err)
	}
	defer db.Close()

	creds, ok, err := store.NewCredentialStore(db).Load(ctx)
	switch {
	case err != nil:
		return fmt.Sprintf("unknown (%v)", err)
	case !ok:
		return "not paired"
	case creds.PushName != "":
		return fmt.Sprintf("%s (%s), updated %s", creds.ID, creds.PushName, creds.UpdatedAt.Format("2006-01-02 15:04"))
	default:
		return fmt.Sprintf("%s, updated %s", creds.ID, creds.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func presence(secret string) string {
	if secret == "" {
		return "missing"
	}
	return "set"
}
