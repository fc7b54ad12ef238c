package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/output"
	"github.com/studiolex/lexstore/internal/ui"
)

func newStoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Manage document stores on LexHub",
		Long: `List, create and delete document stores, and inspect their files.

Stores are identified by the remote-assigned name (stores/k9x2f81a) but
every command also accepts the display name you chose at creation.`,
		Example: `  # List stores (cached when fresh)
  lexstore stores list

  # Force a LexHub round trip
  lexstore stores list --refresh

  # Create a store with default metadata for its uploads
  lexstore stores create "Contratti 2024" --description "Contratti di locazione" --default practice=immobiliare

  # List the documents inside a store
  lexstore stores files "Contratti 2024"

  # Delete (idempotent: already-gone stores do not error)
  lexstore stores delete "Contratti 2024"`,
	}

	cmd.AddCommand(newStoresListCmd())
	cmd.AddCommand(newStoresCreateCmd())
	cmd.AddCommand(newStoresDeleteCmd())
	cmd.AddCommand(newStoresFilesCmd())

	return cmd
}

func newStoresListCmd() *cobra.Command {
	var (
		refresh    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger, cleanup := initCLILogging(cfg.Server.LogLevel)
			defer cleanup()

			client := newRemoteClient(cfg, logger)
			defer client.Close()
			reg, _ := newRegistry(cfg, client, logger)

			stores, err := reg.List(cmd.Context(), refresh)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stores)
			}

			out := output.New(cmd.OutOrStdout())
			if len(stores) == 0 {
				out.Status("", "No stores found. Create one with 'lexstore stores create <name>'")
				return nil
			}

			out.Statusf("📦", "Found %d stores on LexHub:", len(stores))
			out.Newline()
			for _, st := range stores {
				out.Statusf("", "%s", formatStoreLine(st))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache and fetch from LexHub")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newStoresCreateCmd() *cobra.Command {
	var (
		description string
		defaults    []string
	)

	cmd := &cobra.Command{
		Use:   "create <display-name>",
		Short: "Create a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultMeta, err := parseKeyValues(defaults)
			if err != nil {
				return fmt.Errorf("invalid --default: %w", err)
			}

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger, cleanup := initCLILogging(cfg.Server.LogLevel)
			defer cleanup()

			client := newRemoteClient(cfg, logger)
			defer client.Close()
			reg, _ := newRegistry(cfg, client, logger)

			st, err := reg.Create(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			if len(defaultMeta) > 0 {
				if err := reg.SetDefaults(st.Name, defaultMeta); err != nil {
					return err
				}
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Created store %q", st.DisplayName)
			out.Detailf("name: %s", st.Name)
			if len(defaultMeta) > 0 {
				out.Detailf("default metadata: %s", formatKeyValues(defaultMeta))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Store description")
	cmd.Flags().StringArrayVar(&defaults, "default", nil, "Default metadata for uploads, key=value (repeatable)")

	return cmd
}

func newStoresDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a store and all its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger, cleanup := initCLILogging(cfg.Server.LogLevel)
			defer cleanup()

			client := newRemoteClient(cfg, logger)
			defer client.Close()
			reg, _ := newRegistry(cfg, client, logger)

			name := args[0]
			if st, resolveErr := reg.Resolve(cmd.Context(), name); resolveErr == nil {
				name = st.Name
			}

			if err := reg.Delete(cmd.Context(), name); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Deleted %s", name)
			return nil
		},
	}
}

func newStoresFilesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "files <name>",
		Short: "List the documents inside a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger, cleanup := initCLILogging(cfg.Server.LogLevel)
			defer cleanup()

			client := newRemoteClient(cfg, logger)
			defer client.Close()
			reg, _ := newRegistry(cfg, client, logger)

			st, err := reg.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			files, err := client.ListFiles(cmd.Context(), st.Name)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(files)
			}

			out := output.New(cmd.OutOrStdout())
			if len(files) == 0 {
				out.Statusf("", "No documents in %q yet", st.DisplayName)
				return nil
			}

			out.Statusf("📄", "%d documents in %q:", len(files), st.DisplayName)
			out.Newline()
			for _, f := range files {
				out.Statusf("", "%s", formatFileLine(f))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// formatStoreLine renders one store for the list view.
func formatStoreLine(st model.Store) string {
	line := fmt.Sprintf("%-28s %-20s %4d files", st.DisplayName, st.Name, st.FileCount)
	if !st.CreatedAt.IsZero() {
		line += "  created " + st.CreatedAt.Format("2006-01-02")
	}
	return line
}

// formatFileLine renders one document for the files view.
func formatFileLine(f model.FileRef) string {
	icon := "✓"
	switch f.State {
	case model.FileStateProcessing:
		icon = "…"
	case model.FileStateFailed:
		icon = "✗"
	}
	line := fmt.Sprintf("%s %-40s %10s  %s", icon, f.DisplayName, ui.FormatBytes(f.SizeBytes), f.State)
	if !f.CreatedAt.IsZero() {
		line += "  " + f.CreatedAt.Format(time.DateOnly)
	}
	return line
}

// parseKeyValues parses repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		m[key] = strings.TrimSpace(value)
	}
	return m, nil
}

// formatKeyValues renders a metadata map as "k=v, k=v" with stable order.
func formatKeyValues(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}
