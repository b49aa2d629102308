// importctl inspects spreadsheet files locally without a running server:
// preview shows detected headers and mapping, validate runs the full row
// validation a job would apply.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerkit/importer/internal/importer"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "importctl",
		Short: "Inspect financial record files before importing",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newValidateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newPreviewCommand() *cobra.Command {
	var format string
	var rows int

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Parse a file and show detected headers, mapping, and sample rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseFileArg(args[0], format)
			if err != nil {
				return err
			}

			n := rows
			if n > len(parsed.Rows) {
				n = len(parsed.Rows)
			}

			return printJSON(map[string]any{
				"headers":         parsed.Headers,
				"detectedMapping": importer.DetectColumns(parsed.Headers),
				"previewRows":     parsed.Rows[:n],
				"totalRows":       parsed.TotalRows,
				"warnings":        parsed.Warnings,
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "file format (csv, xlsx, xls); defaults to the file extension")
	cmd.Flags().IntVar(&rows, "rows", importer.DefaultPreviewRows, "number of sample rows to show")

	return cmd
}

func newValidateCommand() *cobra.Command {
	var format string
	var recordType string
	var mappingJSON string
	var dateFormat string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Run full-file validation against a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseFileArg(args[0], format)
			if err != nil {
				return err
			}

			rt := importer.RecordType(recordType)
			if !rt.Valid() {
				return fmt.Errorf("record type must be income or expense, got %q", recordType)
			}

			// Without an explicit mapping, validate against the detected one.
			mapping := importer.DetectColumns(parsed.Headers)
			if mappingJSON != "" {
				mapping = importer.FieldMapping{}
				if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
					return fmt.Errorf("parsing mapping: %w", err)
				}
			}
			if len(mapping) == 0 {
				return fmt.Errorf("no columns detected; pass --mapping")
			}

			report := importer.ValidateRows(parsed.Rows, mapping, rt, importer.ImportOptions{
				DateFormat: dateFormat,
			})
			if err := printJSON(report); err != nil {
				return err
			}

			if !report.Valid {
				return fmt.Errorf("%d row(s) failed validation", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "file format (csv, xlsx, xls); defaults to the file extension")
	cmd.Flags().StringVar(&recordType, "type", "expense", "record type (income or expense)")
	cmd.Flags().StringVar(&mappingJSON, "mapping", "", `column mapping as JSON, e.g. '{"Date":"date","Amount":"amount"}'`)
	cmd.Flags().StringVar(&dateFormat, "date-format", "", "explicit Go date layout for the date column")

	return cmd
}

// parseFileArg reads and parses a local file, inferring the format from the
// extension unless overridden.
func parseFileArg(path, format string) (*importer.ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	if format == "" {
		return nil, fmt.Errorf("cannot determine file format, pass --format")
	}

	parsed, err := importer.ParseFile(data, strings.ToLower(format))
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
