package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-assistant/internal/bootstrap"
	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/lexical"
	"github.com/kirillkom/campus-assistant/internal/observability/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliOptions struct {
	offline  bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Query and maintain the campus assistant knowledge engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), "campusctl", opts.logLevel, "text"))
		},
	}
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "never call the generation model")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(askCmd(opts))
	root.AddCommand(feedbackCmd(opts))
	root.AddCommand(statsCmd(opts))
	root.AddCommand(reloadCmd(opts))
	root.AddCommand(indexCmd(opts))
	root.AddCommand(archiveCmd())
	return root
}

func openApp(ctx context.Context, opts *cliOptions) (*bootstrap.App, error) {
	cfg := config.Load()
	if opts.offline {
		cfg.OfflineMode = true
	}
	cfg.FeedbackEventsEnabled = false
	return bootstrap.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func askCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question the way POST /chat does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			outcome := app.Search.Search(cmd.Context(), strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}
}

func feedbackCmd(opts *cliOptions) *cobra.Command {
	var question, answer string

	cmd := &cobra.Command{
		Use:       "feedback like|dislike",
		Short:     "Record feedback for an answer",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.FeedbackLike), string(domain.FeedbackDislike)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseFeedbackKind(args[0])
			if !ok {
				return fmt.Errorf("feedback must be like or dislike, got %q", args[0])
			}
			app, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			receipt, err := app.Feedback.Record(cmd.Context(), question, answer, kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question that was asked")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "answer the feedback refers to")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func statsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print learning counters and corpus sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()
			return printJSON(cmd.OutOrStdout(), app.Feedback.Stats())
		},
	}
}

func reloadCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Load the knowledge sources and report what the index would serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.Reload(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), app.Engine.Corpus().Stats)
		},
	}
}

func indexCmd(opts *cliOptions) *cobra.Command {
	index := &cobra.Command{
		Use:   "index",
		Short: "Inspect the lexical index",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the current lexical index as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return app.Engine.ExportIndex(w)
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	index.AddCommand(export)
	index.AddCommand(indexVerifyCmd())
	return index
}

type indexReport struct {
	Terms  int                  `json:"terms"`
	Rows   int                  `json:"rows"`
	Query  string               `json:"query,omitempty"`
	Result *domain.SearchResult `json:"result,omitempty"`
}

func indexVerifyCmd() *cobra.Command {
	var in, query string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Decode an exported index and optionally query it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenizer, err := bootstrap.NewTokenizer(config.Load())
			if err != nil {
				return err
			}
			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open %s: %w", in, err)
			}
			defer f.Close()

			idx, err := lexical.Decode(f, tokenizer)
			if err != nil {
				return err
			}
			report := indexReport{Terms: idx.VocabularySize(), Rows: idx.Len()}
			if query != "" {
				result := idx.Query(query)
				report.Query, report.Result = query, &result
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "exported index file")
	cmd.Flags().StringVarP(&query, "query", "q", "", "question to run against the decoded index")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func archiveCmd() *cobra.Command {
	archive := &cobra.Command{
		Use:   "archive",
		Short: "Report on the Postgres feedback archive",
	}

	var limit int
	top := &cobra.Command{
		Use:   "top-disliked",
		Short: "List the answers disliked most often",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeFn, err := bootstrap.OpenArchive(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := repo.MostDisliked(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}
	top.Flags().IntVarP(&limit, "limit", "n", 10, "number of answers to list")
	archive.AddCommand(top)
	return archive
}
