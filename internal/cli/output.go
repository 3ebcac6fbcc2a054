package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tessro/dbxlink/internal/wire"
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

var errUnknownFormat = fmt.Errorf("unknown output format (want %s, %s or %s)", formatTable, formatYAML, formatJSON)

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", formatTable, "output format: table, yaml, json")
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownFormat, format)
}

// encode writes v as YAML or JSON. Table output is format specific and
// handled by the callers.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownFormat, format)
}

// table is a tab-aligned writer with a header row.
func table(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

// argsRecord is an argument table in key order for YAML output, where a
// plain map would be re-sorted.
type argsRecord struct {
	Key    string   `yaml:"key" json:"key"`
	Values []string `yaml:"values" json:"values"`
}

// printArgs writes a response's arguments.
func printArgs(w io.Writer, format string, args *wire.Args) error {
	switch format {
	case formatTable:
		if args.Len() == 0 {
			_, err := fmt.Fprintln(w, "📦 ok (no arguments)")
			return err
		}
		tw := table(w, "KEY", "VALUES")
		for _, k := range args.Keys() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, strings.Join(args.Get(k), ", "))
		}
		return tw.Flush()
	case formatJSON:
		return encode(w, format, args.Map())
	default:
		records := make([]argsRecord, 0, args.Len())
		for _, k := range args.Keys() {
			records = append(records, argsRecord{Key: k, Values: args.Get(k)})
		}
		return encode(w, format, records)
	}
}
