package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/civicqa/govrag"
	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/ingest"
)

var version = "dev"

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "govrag",
		Short:         "Grounded question answering over crawled government pages",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml config file")
	root.AddCommand(serveCmd(), queryCmd(), ingestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *govrag.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Log.Level)
	client, err := govrag.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func newPipeline(cfg *config.Config, client *govrag.Client) *ingest.Pipeline {
	hc := httpx.NewFromConfig(cfg.HTTP)
	fetcher := ingest.NewHTTPFetcher(cfg.Ingest, hc)
	return ingest.NewPipeline(cfg, fetcher, nil, client.Embedder(), client.Store())
}

func serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool surface on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := setup()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					logger.Infof("metrics listening on %s", metricsAddr)
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Errorf("metrics listener: %v", err)
					}
				}()
			}
			s := govrag.NewServer(client, newPipeline(cfg, client), version)
			logger.Infof("govrag %s serving on stdio", version)
			return govrag.ServeStdio(s)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the prometheus /metrics listener (disabled when empty)")
	return cmd
}

func queryCmd() *cobra.Command {
	var topK, topN int
	var contentType string
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup()
			if err != nil {
				return err
			}
			opts := govrag.QueryOptions{TopK: topK, TopN: topN}
			if contentType != "" {
				opts.Filters = map[string]string{"content_type": contentType}
			}
			ans := client.Answer(cmd.Context(), strings.Join(args, " "), opts)
			return printJSON(ans)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "candidate budget after the similarity cutoff")
	cmd.Flags().IntVar(&topN, "top-n", 0, "number of sources handed to generation")
	cmd.Flags().StringVar(&contentType, "content-type", "", "restrict sources to html, pdf, faq or form")
	return cmd
}

func ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest [url ...]",
		Short: "Crawl and index pages into the vector collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				for _, line := range strings.Split(string(data), "\n") {
					if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
						urls = append(urls, line)
					}
				}
			}
			if len(urls) == 0 {
				return fmt.Errorf("no urls given; pass them as arguments or with --file")
			}
			cfg, client, err := setup()
			if err != nil {
				return err
			}
			report, err := newPipeline(cfg, client).Run(cmd.Context(), urls)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file with one url per line")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
