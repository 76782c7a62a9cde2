package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

type parseFlags struct {
	format        string
	tzOffset      int
	currencyLabel string
}

// Row is one parsed line. Empty fields mean the rule did not match.
type Row struct {
	Line         int    `csv:"line" json:"line"`
	OK           bool   `csv:"ok" json:"ok"`
	ReferenceID  string `csv:"reference_id" json:"reference_id,omitempty"`
	Amount       string `csv:"amount" json:"amount,omitempty"`
	AccountToken string `csv:"account_token" json:"account_token,omitempty"`
	PayerPhone   string `csv:"payer_phone" json:"payer_phone,omitempty"`
	PayerName    string `csv:"payer_name" json:"payer_name,omitempty"`
	OccurredAt   string `csv:"occurred_at" json:"occurred_at,omitempty"`
	Reason       string `csv:"reason" json:"reason,omitempty"`
	Field        string `csv:"field" json:"field,omitempty"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "msgcheck",
		Short:         "Check payment notification messages against the parser rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newParseCmd())
	return root
}

func newParseCmd() *cobra.Command {
	flags := parseFlags{}
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse one message per line from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			return runParse(in, cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.format, "format", formatCSV, "output format: csv or json")
	cmd.Flags().IntVar(&flags.tzOffset, "tz-offset", 3, "UTC offset in hours of the timestamps inside messages")
	cmd.Flags().StringVar(&flags.currencyLabel, "currency", "Ksh", "currency label preceding the amount")
	return cmd
}

func runParse(in io.Reader, out io.Writer, flags parseFlags) error {
	if flags.format != formatCSV && flags.format != formatJSON {
		return fmt.Errorf("unknown format %q", flags.format)
	}
	p := parser.New(
		parser.WithLocation(time.FixedZone(fmt.Sprintf("UTC%+d", flags.tzOffset), flags.tzOffset*3600)),
		parser.WithRules(parser.DefaultRules(flags.currencyLabel)),
	)

	var rows []*Row
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rows = append(rows, parseLine(p, line, text))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if flags.format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		return nil
	}
	return gocsv.Marshal(rows, out)
}

func parseLine(p *parser.Parser, line int, text string) *Row {
	row := &Row{Line: line}
	payment, err := p.Parse(text)
	if err != nil {
		if pe, ok := parser.AsParseError(err); ok {
			row.Reason = pe.Reason
			row.Field = pe.Field
		} else {
			row.Reason = err.Error()
		}
		return row
	}
	row.OK = true
	row.ReferenceID = lo.FromPtr(payment.ReferenceID)
	row.Amount = payment.Amount.StringFixed(2)
	row.AccountToken = payment.AccountToken
	row.PayerPhone = lo.FromPtr(payment.PayerPhone)
	row.PayerName = lo.FromPtr(payment.PayerName)
	if payment.OccurredAt != nil {
		row.OccurredAt = payment.OccurredAt.Format(time.RFC3339)
	}
	return row
}
