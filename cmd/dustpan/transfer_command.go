package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustpan/dustpan/service/workflow"
	"github.com/urfave/cli/v2"
)

type transferView struct {
	Signature    string  `json:"signature"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason,omitempty"`
	Receiver     string  `json:"receiver"`
	Mint         string  `json:"mint,omitempty"`
	BaseUnits    uint64  `json:"base_units"`
	EstimatedFee *uint64 `json:"estimated_fee_lamports,omitempty"`
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Aliases:   []string{"send"},
		Usage:     "Send SOL or an SPL token from the configured wallet",
		ArgsUsage: "RECEIVER_ADDRESS AMOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mint",
				Aliases: []string{"m"},
				Usage:   "SPL token mint address; omit to send native SOL",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("receiver address and amount are required")
			}

			receiver := c.Args().Get(0)
			amount := c.Args().Get(1)
			mint := c.String("mint")
			jsonOutput := c.Bool("json")

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.ConfirmTimeout)
			defer cancel()

			transferer := workflow.NewTransferer(rt.deps, rt.registry)
			result, err := transferer.Transfer(ctx, workflow.TransferRequest{
				Receiver: receiver,
				Amount:   amount,
				Mint:     mint,
			})
			if err != nil {
				return fmt.Errorf("transfer failed: %w", err)
			}

			view := transferView{
				Signature:    result.Outcome.Signature.String(),
				Status:       string(result.Outcome.Status),
				Reason:       result.Outcome.Reason,
				Receiver:     receiver,
				Mint:         mint,
				BaseUnits:    result.AmountBaseUnits,
				EstimatedFee: result.EstimatedFee,
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(view, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("Transfer %s\n", view.Status)
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("Signature: %s\n", view.Signature)
			fmt.Printf("Receiver:  %s\n", view.Receiver)
			if mint != "" {
				fmt.Printf("Asset:     %s\n", rt.registry.DisplayName(ctx, mint))
				fmt.Printf("Mint:      %s\n", mint)
			} else {
				fmt.Printf("Asset:     SOL\n")
			}
			fmt.Printf("Amount:    %s (%d base units)\n", amount, view.BaseUnits)
			if view.EstimatedFee != nil {
				fmt.Printf("Est. Fee:  %d lamports\n", *view.EstimatedFee)
			}
			if view.Reason != "" {
				fmt.Printf("Reason:    %s\n", view.Reason)
			}
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			return nil
		},
	}
}
