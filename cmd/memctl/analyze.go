package main

import (
	"fmt"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		channel      string
		memoriesPath string
		catalogPath  string
		contact      string
		candidates   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <event.json|->",
		Short: "Extract memories from one event and reconcile them with known memories",
		Long: `Runs the channel analyzer for one event and prints the resulting
new memories, reinforcements and contradictions as JSON. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			contactID := uuid.Nil
			if contact != "" {
				if contactID, err = uuid.Parse(contact); err != nil {
					return fmt.Errorf("invalid --contact: %w", err)
				}
			}
			ev, err := domain.DecodeEventFor(domain.Channel(channel), data, contactID)
			if err != nil {
				return err
			}

			engine, err := loadEngine(catalogPath)
			if err != nil {
				return err
			}

			if candidates {
				cs, err := engine.Candidates(ev)
				if err != nil {
					return err
				}
				if cs == nil {
					cs = []domain.MemoryCandidate{}
				}
				return printJSON(cmd.OutOrStdout(), cs)
			}

			existing, err := loadMemories(memoriesPath)
			if err != nil {
				return err
			}
			result, err := engine.Analyze(ev, domain.ExtractionContext{
				ContactID:        ev.Contact(),
				ExistingMemories: existing,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "", "signal channel: quiz, survey, social, purchase or chat")
	cmd.Flags().StringVarP(&memoriesPath, "memories", "m", "", "JSON array of the contact's current memories")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "pattern catalog YAML (default: built-in)")
	cmd.Flags().StringVar(&contact, "contact", "", "contact id for events that omit contact_id")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "print raw candidates without reconciling")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}
