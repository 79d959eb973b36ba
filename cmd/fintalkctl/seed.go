package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sbu-europe/fintalk/internal/domain"
)

type cardholderReplacer interface {
	ReplaceAll(ctx context.Context, holders []domain.Cardholder) (int, error)
}

// dummyCardholders are the demo customers the card tools operate on.
var dummyCardholders = []domain.Cardholder{
	{Username: "john_doe", PhoneNumber: "+1234567890", CreditCardNumber: "4532-1234-5678-9010", CardStatus: domain.CardStatusActive},
	{Username: "jane_smith", PhoneNumber: "+1234567891", CreditCardNumber: "5425-2345-6789-0123", CardStatus: domain.CardStatusActive},
	{Username: "bob_johnson", PhoneNumber: "+1234567892", CreditCardNumber: "3782-3456-7890-1234", CardStatus: domain.CardStatusBlocked},
	{Username: "alice_williams", PhoneNumber: "+1234567893", CreditCardNumber: "6011-4567-8901-2345", CardStatus: domain.CardStatusActive},
	{Username: "charlie_brown", PhoneNumber: "+1234567894", CreditCardNumber: "4916-5678-9012-3456", CardStatus: domain.CardStatusActive},
	{Username: "diana_prince", PhoneNumber: "+1234567895", CreditCardNumber: "5234-6789-0123-4567", CardStatus: domain.CardStatusActive},
	{Username: "edward_norton", PhoneNumber: "+1234567896", CreditCardNumber: "3714-7890-1234-5678", CardStatus: domain.CardStatusBlocked},
	{Username: "fiona_gallagher", PhoneNumber: "+1234567897", CreditCardNumber: "6011-8901-2345-6789", CardStatus: domain.CardStatusActive},
	{Username: "george_martin", PhoneNumber: "+1234567898", CreditCardNumber: "4539-9012-3456-7890", CardStatus: domain.CardStatusActive},
	{Username: "hannah_montana", PhoneNumber: "+1234567899", CreditCardNumber: "5412-0123-4567-8901", CardStatus: domain.CardStatusActive},
}

func NewSeedCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all cardholders with the demo data set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.core(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runSeed(cmd.Context(), a.Cardholders, cmd.OutOrStdout())
		},
	}
}

func runSeed(ctx context.Context, store cardholderReplacer, out io.Writer) error {
	n, err := store.ReplaceAll(ctx, dummyCardholders)
	if err != nil {
		return fmt.Errorf("seed cardholders: %w", err)
	}
	fmt.Fprintf(out, "Created %d cardholders\n", n)
	for _, h := range dummyCardholders {
		fmt.Fprintf(out, "  %-16s %s  card ending %s  %s\n", h.Username, h.PhoneNumber, h.LastFour(), h.CardStatus)
	}
	return nil
}
