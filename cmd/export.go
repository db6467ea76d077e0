/*
Copyright © 2025 eslsoft

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/studydeck/internal/usecase/backup"
)

const (
	exportOutputKey = "backup.export.output"
	exportGzipKey   = "backup.export.gzip"
	exportBatchKey  = "backup.export.batch_size"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database as an NDJSON backup",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		outputPath := viper.GetString(exportOutputKey)
		gzipEnabled := viper.GetBool(exportGzipKey)
		batchSize := viper.GetInt(exportBatchKey)

		if outputPath == "" {
			outputPath = defaultExportFilename(gzipEnabled)
		}
		if !gzipEnabled && outputPath != "-" && strings.HasSuffix(strings.ToLower(outputPath), ".gz") {
			gzipEnabled = true
		}

		service, err := newBackupService(batchSize)
		if err != nil {
			return err
		}

		var (
			writer   = cmd.OutOrStdout()
			closeFns []func() error
		)

		if outputPath != "-" {
			if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			file, openErr := os.Create(outputPath)
			if openErr != nil {
				return fmt.Errorf("create backup file: %w", openErr)
			}
			writer = file
			closeFns = append(closeFns, file.Close)
		}

		if gzipEnabled {
			gz := gzip.NewWriter(writer)
			writer = gz
			closeFns = append([]func() error{gz.Close}, closeFns...)
		}

		defer func() {
			for _, closer := range closeFns {
				if cerr := closer(); cerr != nil && err == nil {
					err = cerr
				}
			}
		}()

		progress := newCLIProgress(cmd.ErrOrStderr())
		if err := service.Export(ctx, writer, backup.WithProgressReporter(progress)); err != nil {
			return fmt.Errorf("export backup: %w", err)
		}

		if outputPath == "-" {
			cmd.Println("export complete: wrote to stdout")
		} else {
			cmd.Printf("export complete: %s\n", outputPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "backup output path, - for stdout")
	exportCmd.Flags().Bool("gzip", false, "gzip-compress the output")
	exportCmd.Flags().Int("batch-size", 0, "export batch size (default 512)")

	bindFlagToViper(exportOutputKey, exportCmd.Flags().Lookup("output"))
	bindFlagToViper(exportGzipKey, exportCmd.Flags().Lookup("gzip"))
	bindFlagToViper(exportBatchKey, exportCmd.Flags().Lookup("batch-size"))
}

func defaultExportFilename(gzipEnabled bool) string {
	ts := time.Now().UTC().Format("20060102-150405")
	filename := fmt.Sprintf("studydeck-backup-%s.jsonl", ts)
	if gzipEnabled {
		filename += ".gz"
	}
	return filename
}

type cliProgress struct {
	out         io.Writer
	totals      map[string]int
	counts      map[string]int
	lastPrinted map[string]int
}

func newCLIProgress(out io.Writer) *cliProgress {
	return &cliProgress{
		out:         out,
		totals:      make(map[string]int),
		counts:      make(map[string]int),
		lastPrinted: make(map[string]int),
	}
}

func (p *cliProgress) StartTable(table string, total int) {
	if total < 0 {
		total = 0
	}
	p.totals[table] = total
	p.counts[table] = 0
	p.lastPrinted[table] = 0
	fmt.Fprintf(p.out, "exporting %s (%d rows)\n", table, total)
}

func (p *cliProgress) Increment(table string, delta int) {
	if delta <= 0 {
		return
	}
	current := p.counts[table] + delta
	p.counts[table] = current
	total := p.totals[table]
	step := progressStep(total)
	if current == total || current-p.lastPrinted[table] >= step {
		fmt.Fprintf(p.out, "  %s: %d/%d\n", table, current, total)
		p.lastPrinted[table] = current
	}
}

func (p *cliProgress) FinishTable(table string) {
	fmt.Fprintf(p.out, "finished %s: %d rows\n", table, p.counts[table])
}
