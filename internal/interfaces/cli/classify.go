package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
)

// NewClassifyCmd creates the classify command.  It runs recognition on
// labels given on the command line, without verification or pricing.
func NewClassifyCmd() *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "classify <label>...",
		Short: "Recognise and measure individual labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rec, err := recognizer.New(cliCtx.Config.Recognition.Recognizer(), cliCtx.Logger)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd, cliCtx)
			defer cancel()

			result := ClassifyResult{}
			for _, text := range args {
				c := rec.RecognizeOne(ctx, component.TextAnnotation{Content: text, Layer: layer})
				result.Items = append(result.Items, ClassifiedLabel{Text: text, Component: c})
			}
			return PrintResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "drawing layer the labels come from")
	return cmd
}

// ClassifiedLabel pairs an input label with its component, nil when the
// label matched no category.
type ClassifiedLabel struct {
	Text      string               `json:"text"`
	Component *component.Component `json:"component"`
}

// ClassifyResult is the output of the classify command.
type ClassifyResult struct {
	Items []ClassifiedLabel `json:"items"`
}

func (r ClassifyResult) TableHeaders() []string {
	return []string{"LABEL", "CATEGORY", "CODE", "GRADE", "L×W×H (m)", "VOLUME", "STATUS", "CONF"}
}

func (r ClassifyResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		c := it.Component
		if c == nil {
			rows = append(rows, []string{it.Text, "-", "", "", "", "", "unrecognised", ""})
			continue
		}
		status := string(c.Status)
		if c.AnomalyReason != "" {
			status += ": " + c.AnomalyReason
		}
		rows = append(rows, []string{
			it.Text,
			c.Category,
			c.Code,
			c.Grade,
			ff(c.Length, 2) + "×" + ff(c.Width, 2) + "×" + ff(c.Height, 2),
			ff(c.Volume, 3),
			status,
			ff(c.Confidence, 2),
		})
	}
	return rows
}

func ff(v float64, decimals int) string { return strconv.FormatFloat(v, 'f', decimals, 64) }

//Personal.AI order the ending
