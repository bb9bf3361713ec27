// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/faculty-sync/internal/classify"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Flag health equity and climate health researchers",
	Long: `Classify scans stored publication and grant titles for taxonomy
keywords and records matching researchers in the classified_users
table. Use subcommands to run a scan, report on stored results, export
the roster, or inspect the keyword set.`,
}

// --- run subcommand ---

var classifyRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan titles and classify matching researchers",
	Long: `Run matches every stored publication and grant title against the
keyword taxonomy and upserts a classification row per matched
researcher. Repeated runs merge methods and keywords instead of
overwriting earlier results.`,
	RunE: runClassifyRun,
}

func runClassifyRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	method, _ := cmd.Flags().GetString("method")
	keywordFile, _ := cmd.Flags().GetString("keywords")
	intersection, _ := cmd.Flags().GetBool("intersection")

	c, err := classify.New(st, types.ClassifyConfig{
		Method:       method,
		KeywordFile:  keywordFile,
		Intersection: intersection,
	}, os.Stdout)
	if err != nil {
		return err
	}

	result, err := c.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("scanned %d publications and %d grants: %d researcher(s) qualified (%d new, %d updated)\n",
		result.PublicationsScanned, result.GrantsScanned, result.Qualified, result.Inserted, result.Updated)
	return nil
}

// --- report subcommand ---

var classifyReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize stored classifications",
	Long: `Report summarizes stored classifications: totals, per-method counts,
and keyword tallies. --per-user adds one line per researcher; --out
writes the full report, researchers included, as YAML instead.`,
	RunE: runClassifyReport,
}

func runClassifyReport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := classify.Summarize(context.Background(), st)
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := report.WriteYAML(out); err != nil {
			return err
		}
		fmt.Println("Report written to", out)
		return nil
	}

	if perUser, _ := cmd.Flags().GetBool("per-user"); !perUser {
		report.Researchers = nil
	}
	report.Print(os.Stdout)
	return nil
}

// --- export subcommand ---

var classifyExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export classified researchers as CSV",
	Long: `Export writes the classified researcher roster as CSV to the given
file, or to stdout when no file is named.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassifyExport,
}

func runClassifyExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if len(args) > 0 {
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := classify.ExportCSV(context.Background(), st, out)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		fmt.Printf("Exported %d researcher(s) to %s\n", n, args[0])
	}
	return nil
}

// --- keywords subcommand ---

var classifyKeywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Print or dump the keyword taxonomy",
	Long: `Keywords prints the built-in taxonomy. With --out it writes the set
as YAML, which can be edited and passed back through --keywords on
classify run.`,
	RunE: runClassifyKeywords,
}

func runClassifyKeywords(cmd *cobra.Command, args []string) error {
	keywords := classify.DefaultKeywords()
	if intersection, _ := cmd.Flags().GetBool("intersection"); intersection {
		keywords = classify.IntersectionKeywords()
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := classify.WriteKeywordFile(out, keywords); err != nil {
			return err
		}
		fmt.Println("Keywords written to", out)
		return nil
	}

	for _, kw := range keywords {
		fmt.Printf("%-16s %s\n", kw.Group, kw.Term)
	}
	return nil
}

func init() {
	classifyRunCmd.Flags().String("method", "", "classification method: initial_scan or intersection_scan (default initial_scan)")
	classifyRunCmd.Flags().Bool("intersection", false, "use the intersection taxonomy (shorthand for --method intersection_scan)")
	classifyRunCmd.Flags().String("keywords", "", "YAML file overriding the built-in keyword set")

	classifyReportCmd.Flags().Bool("per-user", false, "list each researcher with their matched keywords")
	classifyReportCmd.Flags().String("out", "", "write the report as YAML to this file instead of printing")

	classifyKeywordsCmd.Flags().Bool("intersection", false, "show the intersection taxonomy")
	classifyKeywordsCmd.Flags().String("out", "", "write the taxonomy as YAML to this file")

	classifyCmd.AddCommand(classifyRunCmd)
	classifyCmd.AddCommand(classifyReportCmd)
	classifyCmd.AddCommand(classifyExportCmd)
	classifyCmd.AddCommand(classifyKeywordsCmd)

	rootCmd.AddCommand(classifyCmd)
}
