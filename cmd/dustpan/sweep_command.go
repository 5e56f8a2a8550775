package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustpan/dustpan/service/tx"
	"github.com/dustpan/dustpan/service/workflow"
	"github.com/urfave/cli/v2"
)

type contributionView struct {
	PublicKey string `json:"public_key"`
	Lamports  uint64 `json:"lamports"`
}

type droppedView struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type sweepView struct {
	Signature      string             `json:"signature"`
	Status         string             `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	Receiver       string             `json:"receiver"`
	TotalAvailable uint64             `json:"total_available_lamports"`
	Transferred    uint64             `json:"transferred_lamports"`
	EstimatedFee   *uint64            `json:"estimated_fee_lamports,omitempty"`
	Contributions  []contributionView `json:"contributions"`
	Dropped        []droppedView      `json:"dropped,omitempty"`
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:      "sweep",
		Usage:     "Consolidate lamports from many throwaway accounts into one receiver",
		ArgsUsage: "RECEIVER_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keys-file",
				Aliases: []string{"k"},
				Value:   "-",
				Usage:   "File with one sender secret key per line (base58 or JSON array); \"-\" reads stdin",
			},
			&cli.StringFlag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Total SOL to sweep across the batch (e.g. 0.5); omit to sweep everything",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("receiver address is required")
			}

			receiver := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			senderKeys, err := readSenderKeys(c.String("keys-file"))
			if err != nil {
				return err
			}
			if len(senderKeys) == 0 {
				return fmt.Errorf("no sender keys provided")
			}

			req := workflow.SweepRequest{
				SenderKeys: senderKeys,
				Receiver:   receiver,
				FullAmount: true,
			}
			if amount := c.String("amount"); amount != "" {
				lamports, err := tx.ToBaseUnits(amount, tx.NativeDecimals)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				req.FullAmount = false
				req.TotalLamports = lamports
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.ConfirmTimeout)
			defer cancel()

			result, err := workflow.NewSweeper(rt.deps).Sweep(ctx, req)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			view := sweepView{
				Signature:      result.Outcome.Signature.String(),
				Status:         string(result.Outcome.Status),
				Reason:         result.Outcome.Reason,
				Receiver:       receiver,
				TotalAvailable: result.TotalAvailable,
				Transferred:    result.Transferred,
				EstimatedFee:   result.EstimatedFee,
			}
			for _, contribution := range result.Contributions {
				view.Contributions = append(view.Contributions, contributionView{
					PublicKey: contribution.PublicKey.String(),
					Lamports:  contribution.Lamports,
				})
			}
			for _, dropped := range result.Dropped {
				view.Dropped = append(view.Dropped, droppedView{Index: dropped.Index, Reason: dropped.Reason})
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(view, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("Sweep %s\n", view.Status)
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("Signature:   %s\n", view.Signature)
			fmt.Printf("Receiver:    %s\n", view.Receiver)
			fmt.Printf("Transferred: %s SOL (%d lamports)\n", tx.FromBaseUnits(view.Transferred, tx.NativeDecimals), view.Transferred)
			if view.EstimatedFee != nil {
				fmt.Printf("Est. Fee:    %d lamports\n", *view.EstimatedFee)
			}
			if view.Reason != "" {
				fmt.Printf("Reason:      %s\n", view.Reason)
			}
			fmt.Printf("Senders:     %d\n", len(view.Contributions))
			for _, contribution := range view.Contributions {
				fmt.Printf("  %s  %d lamports\n", contribution.PublicKey, contribution.Lamports)
			}
			if len(view.Dropped) > 0 {
				fmt.Printf("Dropped:     %d\n", len(view.Dropped))
				for _, dropped := range view.Dropped {
					fmt.Printf("  line %d: %s\n", dropped.Index+1, dropped.Reason)
				}
			}
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			return nil
		},
	}
}

// readSenderKeys reads one secret key per line, skipping blank lines.
// Unparseable lines are passed through; the workflow reports them as
// dropped senders with their line positions intact.
func readSenderKeys(path string) ([]string, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sender keys: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines, nil
}
