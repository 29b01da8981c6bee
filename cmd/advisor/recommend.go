package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tjfontaine/blackjack-advisor/internal/advisor"
	"github.com/tjfontaine/blackjack-advisor/internal/app"
	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
)

func newRecommendCmd(root *rootOptions) *cobra.Command {
	var (
		snapshotPath string
		provider     string
		compare      bool
		stream       bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Ask for a recommendation on a snapshot file",
		Long:  "Reads a game snapshot (YAML or JSON, \"-\" for stdin) and prints the recommendation as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}

			snapshot, err := readSnapshot(snapshotPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if compare {
				return enc.Encode(a.Advisor.Compare(cmd.Context(), snapshot))
			}

			p, err := domain.ParseProvider(provider)
			if err != nil {
				return err
			}
			var opts []advisor.CallOption
			if stream {
				opts = append(opts, advisor.WithFragmentHandler(func(s string) {
					fmt.Fprint(cmd.ErrOrStderr(), s)
				}))
			}
			rec := a.Advisor.Recommend(cmd.Context(), snapshot, p, opts...)
			if stream {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			return enc.Encode(rec)
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "-", "Snapshot file (YAML or JSON)")
	cmd.Flags().StringVar(&provider, "provider", string(domain.ProviderLlamaStack), "Provider to ask (ls, ollama, vllm)")
	cmd.Flags().BoolVar(&compare, "compare", false, "Ask every provider concurrently")
	cmd.Flags().BoolVar(&stream, "stream", false, "Echo streamed fragments to stderr")
	return cmd
}

// readSnapshot decodes a snapshot from path, or from stdin when path is "-".
// JSON input is accepted since it is valid YAML.
func readSnapshot(path string, stdin io.Reader) (domain.GameSnapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.GameSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
