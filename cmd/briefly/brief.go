package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/store"
	"github.com/briefly-ai/briefly/internal/telemetry"
	openai_provider "github.com/briefly-ai/briefly/provider/openai"
	"github.com/briefly-ai/briefly/tools/web_fetch"
	"github.com/briefly-ai/briefly/tools/web_search"
)

// briefCMD runs a single research brief from the terminal, without the
// HTTP server. History and persistence need a configured Postgres; when
// it is absent the run is standalone.
func briefCMD() *cobra.Command {
	var cfgPath string
	var depth string
	var asJSON bool
	var followUp bool
	var userID string

	var cmd = &cobra.Command{
		Use:   "brief [topic]",
		Short: "Generate one research brief and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tele := telemetry.New(cfg.Telemetry)
			defer tele.Shutdown()

			llm := openai_provider.New(cfg.LLM, tele)
			searcher, err := web_search.NewWebSearcher(cfg.Search)
			if err != nil {
				return err
			}
			fetcher, err := web_fetch.NewWebFetcher(cfg.Fetch)
			if err != nil {
				return err
			}

			var history brief.HistoryStore
			if _, err := cfg.Storage.Postgres.DSN(); err == nil {
				if st, err := store.New(ctx, cfg.Storage.Postgres); err == nil {
					defer st.Close()
					history = st
				}
			}

			orch := brief.New(cfg, llm,
				web_search.Adapter{Searcher: searcher, Cfg: cfg.Search},
				web_fetch.Adapter{Fetcher: fetcher, Recorder: tele},
				history, tele)

			res, err := orch.Run(ctx, brief.Request{
				Topic:      strings.Join(args, " "),
				Depth:      brief.Depth(depth),
				UserID:     userID,
				IsFollowUp: followUp,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Brief)
			}
			printBrief(res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./briefly.yaml)")
	cmd.Flags().StringVar(&depth, "depth", "moderate", "research depth: shallow, moderate or deep")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the brief as JSON")
	cmd.Flags().BoolVar(&followUp, "follow-up", false, "treat the topic as a follow-up to earlier briefs")
	cmd.Flags().StringVar(&userID, "user", "cli", "user id for history lookups")

	return cmd
}

func printBrief(res brief.RunResult) {
	b := res.Brief
	fmt.Printf("# %s\n\n", b.Topic)
	if b.FailureReason != "" {
		fmt.Printf("FAILED: %s\n\n", b.FailureReason)
	}
	fmt.Printf("%s\n\n%s\n", b.ExecutiveSummary, b.Synthesis)
	if len(b.KeyInsights) > 0 {
		fmt.Println("\nKey insights:")
		for _, k := range b.KeyInsights {
			fmt.Printf("  - %s\n", k)
		}
	}
	if len(b.References) > 0 {
		fmt.Println("\nReferences:")
		for _, r := range b.References {
			fmt.Printf("  - %s (%s)\n", r.Title, r.URL)
		}
	}
	for _, w := range b.Warnings {
		fmt.Printf("\nwarning: %s\n", w)
	}
	fmt.Printf("\nGenerated in %s\n", res.ExecutionTime.Round(10*time.Millisecond))
}
