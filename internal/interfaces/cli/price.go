package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/KeyQTO/internal/infrastructure/pricing"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// NewPriceCmd creates the price command group.
func NewPriceCmd() *cobra.Command {
	var table string
	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Inspect the unit price table",
	}
	priceCmd.PersistentFlags().StringVar(&table, "prices", "", "price table path (overrides config)")

	load := func(cmd *cobra.Command) (*pricing.PriceBook, error) {
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return nil, err
		}
		path := table
		if path == "" {
			path = cliCtx.Config.Pricing.TablePath
		}
		return pricing.LoadFile(path)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every price item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := load(cmd)
			if err != nil {
				return err
			}
			return PrintResult(cmd, PriceList{Currency: book.Currency(), Items: book.Entries()})
		},
	}

	matchCmd := &cobra.Command{
		Use:   "match <label>",
		Short: "Show which price item a label resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := load(cmd)
			if err != nil {
				return err
			}
			m, ok := book.Match(args[0])
			if !ok {
				return errors.Newf(errors.ErrCodePriceNotFound, "no price for %q", args[0])
			}
			return PrintResult(cmd, PriceMatch{Label: args[0], Match: m})
		},
	}

	priceCmd.AddCommand(listCmd, matchCmd)
	return priceCmd
}

// PriceList is the output of price list.
type PriceList struct {
	Currency string          `json:"currency,omitempty"`
	Items    []pricing.Entry `json:"items"`
}

func (p PriceList) TableHeaders() []string {
	return []string{"LABEL", "UNIT", "UNIT PRICE", "DESCRIPTION"}
}

func (p PriceList) TableRows() [][]string {
	rows := make([][]string, 0, len(p.Items))
	for _, e := range p.Items {
		rows = append(rows, []string{e.Label, e.Unit, ff(e.UnitPrice, 2), e.Description})
	}
	return rows
}

// PriceMatch is the output of price match.
type PriceMatch struct {
	Label string        `json:"label"`
	Match pricing.Match `json:"match"`
}

func (p PriceMatch) TableHeaders() []string {
	return []string{"LABEL", "KEY", "STRATEGY", "UNIT", "UNIT PRICE"}
}

func (p PriceMatch) TableRows() [][]string {
	return [][]string{{p.Label, p.Match.Key, string(p.Match.Strategy), p.Match.Item.Unit, ff(p.Match.Item.UnitPrice, 2)}}
}

//Personal.AI order the ending
