package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/config"
	"github.com/studiolex/lexstore/internal/history"
	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/output"
	"github.com/studiolex/lexstore/internal/query"
	"github.com/studiolex/lexstore/internal/ui"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	filters    []string
	docType    string
	jsonOutput bool
	exportPath string
	plain      bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <store> <question>...",
		Short: "Ask a question against a store",
		Long: `Ask a natural-language question against the documents of a store.

The answer comes back grounded in the store's documents, with citations
pointing at the source passages. Filters restrict the searched documents
by metadata: repeat --filter for AND across fields, use comma-separated
values for OR within one field.`,
		Example: `  # Plain question
  lexstore query "Contratti 2024" quando scade il contratto di locazione?

  # Only search contracts
  lexstore query "Contratti 2024" termini di pagamento --doc-type Contratto

  # AND across fields, OR within a field
  lexstore query Massimario responsabilità del locatore --filter doc_type=Sentenza,Atto --filter practice=immobiliare

  # Export the full result
  lexstore query "Contratti 2024" clausole penali --export risultato.json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[1:], " ")
			return runQuery(cmd.Context(), cmd, args[0], question, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Metadata filter, key=value[,value...] (repeatable)")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "", "Shortcut for --filter doc_type=<value>")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the full result as JSON")
	cmd.Flags().StringVar(&opts.exportPath, "export", "", "Write the result to a .json or .csv file")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable markdown rendering of the answer")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, storeKey, question string, opts queryOptions) error {
	filters, err := parseFilters(opts.filters, opts.docType)
	if err != nil {
		return err
	}
	if opts.exportPath != "" {
		if ext := filepath.Ext(opts.exportPath); ext != ".json" && ext != ".csv" {
			return fmt.Errorf("export format must be .json or .csv, got %q", opts.exportPath)
		}
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

	st, err := reg.Resolve(ctx, storeKey)
	if err != nil {
		return err
	}

	var executor query.Executor = query.New(client, logger)
	if cfg.Query.CacheEntries > 0 {
		executor = query.NewCachedExecutor(executor, cfg.Query.CacheEntries)
	}

	start := time.Now()
	result, err := executor.Execute(ctx, model.QueryRequest{
		StoreName: st.Name,
		QueryText: question,
		Filters:   filters,
	})
	if err != nil {
		return err
	}
	recordQueryHistory(ctx, cfg, logger, st.Name, question, result, time.Since(start))

	if opts.exportPath != "" {
		if err := exportResult(opts.exportPath, result); err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := output.New(cmd.OutOrStdout())
	printAnswer(cmd, out, result.AnswerText, opts.plain)

	if len(result.Citations) > 0 {
		out.Newline()
		out.Statusf("📎", "Citations (%d):", len(result.Citations))
		for i, c := range result.Citations {
			out.Detailf("%d. %s", i+1, formatCitation(c))
		}
	}

	out.Newline()
	out.Detailf("tokens used: %d", result.TokensUsed)
	if opts.exportPath != "" {
		out.Successf("Exported to %s", opts.exportPath)
	}
	return nil
}

// printAnswer renders the answer as markdown on interactive terminals and
// falls back to raw text everywhere else.
func printAnswer(cmd *cobra.Command, out *output.Writer, answer string, plain bool) {
	w := cmd.OutOrStdout()
	if !plain && ui.IsTTY(w) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if rendered, err := r.Render(answer); err == nil {
				fmt.Fprint(w, rendered)
				return
			}
		}
	}
	out.Status("", answer)
}

// parseFilters turns repeated key=value[,value...] flags into the filter
// map. Comma-separated values become an array (OR within the field); the
// --doc-type shortcut fills doc_type unless an explicit filter already did.
func parseFilters(pairs []string, docType string) (map[string]any, error) {
	var filters map[string]any
	ensure := func() {
		if filters == nil {
			filters = make(map[string]any)
		}
	}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --filter %q: expected key=value", pair)
		}
		ensure()
		if strings.Contains(value, ",") {
			var values []any
			for _, v := range strings.Split(value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
			filters[key] = values
		} else {
			filters[key] = strings.TrimSpace(value)
		}
	}

	if docType != "" {
		ensure()
		if _, explicit := filters["doc_type"]; !explicit {
			filters["doc_type"] = docType
		}
	}
	return filters, nil
}

// formatCitation renders one citation line: source, score, excerpt.
func formatCitation(c model.Citation) string {
	line := c.SourceFile
	if c.Score != nil {
		line += fmt.Sprintf(" (score %.2f)", *c.Score)
	}
	if excerpt := strings.TrimSpace(c.Excerpt); excerpt != "" {
		if len(excerpt) > 120 {
			excerpt = excerpt[:117] + "..."
		}
		line += " - " + excerpt
	}
	return line
}

// exportResult writes the result to path: .json gets the full object,
// .csv gets one row per citation.
func exportResult(path string, result *model.QueryResult) error {
	switch filepath.Ext(path) {
	case ".json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil

	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		w := csv.NewWriter(f)
		if err := w.Write([]string{"source_file", "excerpt_or_locator", "score"}); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		for _, c := range result.Citations {
			score := ""
			if c.Score != nil {
				score = strconv.FormatFloat(*c.Score, 'f', -1, 64)
			}
			if err := w.Write([]string{c.SourceFile, c.Excerpt, score}); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		}
		w.Flush()
		return w.Error()

	default:
		return fmt.Errorf("export format must be .json or .csv, got %q", path)
	}
}

// recordQueryHistory writes the query outcome to the audit log. Only the
// question hash is recorded, never the text.
func recordQueryHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, storeName, question string, result *model.QueryResult, latency time.Duration) {
	hist, err := openHistory(cfg, logger)
	if err != nil {
		logger.Warn("cannot open history", "error", err)
		return
	}
	if hist == nil {
		return
	}
	defer func() { _ = hist.Close() }()

	if err := hist.RecordQuery(ctx, storeName, history.HashQuestion(question),
		result.TokensUsed, len(result.Citations), latency); err != nil {
		logger.Warn("cannot record query history", "error", err)
	}
}
