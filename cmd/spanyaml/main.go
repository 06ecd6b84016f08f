package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spanyaml/spanyaml/pkg/cli"
	"github.com/spanyaml/spanyaml/pkg/console"
)

// Build-time variables set by GoReleaser
var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "spanyaml",
	Short: "Source-located YAML tooling",
	Long: `spanyaml reads YAML documents while keeping track of where every
value came from, so problems can be reported with file, line and column.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate <file> <path>",
	Short: "Print the source span of a value inside a YAML file",
	Long: `Print the source span of a value inside a YAML file.

The path uses dotted keys with bracketed indexes, for example:
  spanyaml locate workflow.yml jobs.build.steps[2].run`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.LocateFile(args[0], args[1]); err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			os.Exit(1)
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate YAML files against a JSON schema with source locations",
	Long: `Validate YAML files against a JSON schema.

Violations are reported with the file, line and column of the offending
value. With --watch, the files are re-validated whenever they change.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		schemaPath, _ := cmd.Flags().GetString("schema")
		watch, _ := cmd.Flags().GetBool("watch")

		var err error
		if watch {
			err = cli.WatchFiles(args, schemaPath)
		} else {
			err = cli.CheckFiles(args, schemaPath)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spanyaml version %s\n", version)
	},
}

func init() {
	checkCmd.Flags().StringP("schema", "s", "", "Path to the JSON schema to validate against")
	_ = checkCmd.MarkFlagRequired("schema")
	checkCmd.Flags().BoolP("watch", "w", false, "Re-validate whenever the files change")

	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
