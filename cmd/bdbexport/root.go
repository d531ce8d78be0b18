package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/streamingfast/cli"

	"github.com/noidtools/bdbexport/exporter"
)

var rootCmd = &cobra.Command{
	Use:   "bdbexport <source-db-path> [dest-json-path]",
	Short: "Export a legacy Berkeley DB file to a JSON document",
	Long: cli.Dedent(`
		Reads every record of a Berkeley DB file (btree or hash organization,
		auto-detected) and writes the full key/value set as a flat, UTF-8,
		human-readable JSON object, ready to be imported into a replacement
		store. When no destination is given, the source path with its extension
		replaced by '.json' is used. The destination may also be an object
		store URL (gs://, s3://, az://, file://).
	`),
	Example: string(cli.ExamplePrefixed("bdbexport", `
		/var/lib/noid/noid.bdb noid_data.json
		-v /var/lib/noid/noid.bdb
		--sample /var/lib/noid/noid.bdb
		-s -n 25 /var/lib/noid/noid.bdb
	`)),
	Args:         cobra.RangeArgs(1, 2),
	RunE:         runRootE,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().BoolP("verbose", "v", false, "Show detailed progress on the error stream")
	rootCmd.Flags().BoolP("sample", "s", false, "Show sample records without exporting anything")
	rootCmd.Flags().IntP("num-sample", "n", 10, "Number of sample records to show")
}

func runRootE(cmd *cobra.Command, args []string) error {
	setup(mustGetBool(cmd, "verbose"))

	sourcePath := args[0]
	exp := exporter.New(zlog)

	if mustGetBool(cmd, "sample") {
		return exp.Sample(sourcePath, mustGetInt(cmd, "num-sample"), os.Stdout)
	}

	destPath := exporter.DefaultDestPath(sourcePath)
	if len(args) == 2 {
		destPath = args[1]
	}

	count, err := exp.Export(cmd.Context(), sourcePath, destPath)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %s records to %s\n", humanize.Comma(int64(count)), destPath)
	return nil
}
