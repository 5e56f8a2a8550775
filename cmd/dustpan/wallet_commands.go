package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustpan/dustpan/service/tx"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

type holdingView struct {
	Account   string `json:"account"`
	Mint      string `json:"mint"`
	Name      string `json:"name"`
	BaseUnits uint64 `json:"base_units"`
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Aliases:   []string{"bal"},
		Usage:     "Show SOL balance for an address (defaults to the configured wallet)",
		ArgsUsage: "[ADDRESS]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			jsonOutput := c.Bool("json")

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			account := rt.session.PublicKey()
			if c.NArg() > 0 {
				account, err = solanago.PublicKeyFromBase58(c.Args().Get(0))
				if err != nil {
					return fmt.Errorf("invalid address: %w", err)
				}
			}

			ctx := context.Background()
			lamports, err := rt.resolver.NativeBalance(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to fetch balance: %w", err)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(map[string]interface{}{
					"address":  account.String(),
					"lamports": lamports,
					"sol":      tx.FromBaseUnits(lamports, tx.NativeDecimals),
				}, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Address: %s\n", account)
			fmt.Printf("Balance: %s SOL (%d lamports)\n", tx.FromBaseUnits(lamports, tx.NativeDecimals), lamports)
			return nil
		},
	}
}

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:      "tokens",
		Usage:     "List SPL token holdings for an address (outputs JSON by default)",
		ArgsUsage: "[ADDRESS]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "jq",
				Usage:   "gojq expression applied to the holdings array (e.g. '.[] | select(.base_units > 0)')",
				Aliases: []string{"q"},
			},
			&cli.BoolFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "Output as human-readable table instead of JSON",
			},
		},
		Action: func(c *cli.Context) error {
			jqFilter := c.String("jq")
			tableOutput := c.Bool("table")

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			account := rt.session.PublicKey()
			if c.NArg() > 0 {
				account, err = solanago.PublicKeyFromBase58(c.Args().Get(0))
				if err != nil {
					return fmt.Errorf("invalid address: %w", err)
				}
			}

			ctx := context.Background()
			holdings, err := rt.resolver.TokenHoldings(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to fetch token holdings: %w", err)
			}

			views := make([]holdingView, 0, len(holdings))
			for _, h := range holdings {
				views = append(views, holdingView{
					Account:   h.Account.String(),
					Mint:      h.Mint.String(),
					Name:      rt.registry.DisplayName(ctx, h.Mint.String()),
					BaseUnits: h.Amount,
				})
			}

			if jqFilter != "" {
				return printFiltered(views, jqFilter)
			}

			if tableOutput {
				if len(views) == 0 {
					fmt.Println("No token holdings found")
					return nil
				}
				fmt.Printf("Found %d holding(s) for %s:\n\n", len(views), account)
				for _, v := range views {
					fmt.Printf("  %-40s %20d  %s\n", v.Name, v.BaseUnits, v.Mint)
				}
				return nil
			}

			data, _ := json.MarshalIndent(views, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

// printFiltered runs a gojq expression over the holdings array and prints
// each result as a JSON line.
func printFiltered(views []holdingView, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// Round-trip through JSON so gojq sees plain maps and slices.
	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to marshal holdings: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to decode holdings: %w", err)
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}
