package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/tools"
)

type historyReader interface {
	History(ctx context.Context, phone string, limit int) ([]domain.CardEvent, error)
}

func NewCardEventsCommand(root *RootCommand) *cobra.Command {
	var (
		phone string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "card-events",
		Short:   "Show the card block/enable audit trail of a cardholder",
		Example: `  fintalkctl card-events --phone +1234567891 --limit 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.core(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.CardEvents == nil {
				return errors.New("CARD_EVENTS_TABLE is not set")
			}
			return runCardEvents(cmd.Context(), a.CardEvents, phone, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Cardholder phone number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func runCardEvents(ctx context.Context, log historyReader, phone string, limit int, out io.Writer) error {
	phone = tools.NormalizePhone(phone)
	events, err := log.History(ctx, phone, limit)
	if err != nil {
		return fmt.Errorf("card events for %s: %w", phone, err)
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "No card events for %s\n", phone)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tSTATUS\tUSER")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.OccurredAt.UTC().Format(time.RFC3339), e.Action, e.Status, e.Username)
	}
	return tw.Flush()
}
