package main

import (
	"fmt"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/ingest"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var (
		natsURL string
		channel string
		tenant  string
		project string
		contact string
	)

	cmd := &cobra.Command{
		Use:   "publish <event.json|->",
		Short: "Publish one event to the signal stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			projectID, err := uuid.Parse(project)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			contactID := uuid.Nil
			if contact != "" {
				if contactID, err = uuid.Parse(contact); err != nil {
					return fmt.Errorf("invalid --contact: %w", err)
				}
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ev, err := domain.DecodeEventFor(domain.Channel(channel), data, contactID)
			if err != nil {
				return err
			}
			subject, payload, err := ingest.EncodeEnvelope(tenantID, projectID, ev)
			if err != nil {
				return err
			}

			nc, err := nats.Connect(natsURL, nats.Name("memctl"), nats.Timeout(5*time.Second))
			if err != nil {
				return fmt.Errorf("connect to nats: %w", err)
			}
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				return err
			}
			ack, err := js.Publish(subject, payload)
			if err != nil {
				return fmt.Errorf("publish %s: %w", subject, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s (seq %d)\n", subject, ack.Stream, ack.Sequence)
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats", nats.DefaultURL, "NATS server URL")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "signal channel")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&contact, "contact", "", "contact id for events that omit contact_id")
	for _, f := range []string{"channel", "tenant", "project"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
