package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/profile"
	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	var signals string

	cmd := &cobra.Command{
		Use:   "profile <memories.json>",
		Short: "Project a contact's memories into a cognitive profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memories, err := loadMemories(args[0])
			if err != nil {
				return err
			}
			counts, err := parseSignalCounts(signals)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile.Project(memories, counts))
		},
	}
	cmd.Flags().StringVar(&signals, "signals", "", "processed signal tallies, e.g. quiz=2,chat=5")
	return cmd
}

func parseSignalCounts(s string) (domain.SignalCounts, error) {
	counts := domain.SignalCounts{}
	if strings.TrimSpace(s) == "" {
		return counts, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid --signals entry %q: want source=count", pair)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count for %s: %q", name, value)
		}
		counts[domain.Source(name)] += n
	}
	return counts, nil
}
