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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	importInputKey = "backup.import.input"
	importGzipKey  = "backup.import.gzip"
	importBatchKey = "backup.import.batch_size"
)

// importCmd restores a backup archive. The archived tables are replaced
// wholesale; existing flashcards and history are dropped first.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore the database from an NDJSON backup",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		inputPath := viper.GetString(importInputKey)
		gzipEnabled := viper.GetBool(importGzipKey)
		batchSize := viper.GetInt(importBatchKey)

		if inputPath == "" {
			return fmt.Errorf("input path is required, use --input or - for stdin")
		}
		if !gzipEnabled && inputPath != "-" && strings.HasSuffix(strings.ToLower(inputPath), ".gz") {
			gzipEnabled = true
		}

		service, err := newBackupService(batchSize)
		if err != nil {
			return err
		}

		var (
			reader   io.Reader = cmd.InOrStdin()
			closeFns []func() error
		)

		if inputPath != "-" {
			file, openErr := os.Open(inputPath)
			if openErr != nil {
				return fmt.Errorf("open backup file: %w", openErr)
			}
			reader = file
			closeFns = append(closeFns, file.Close)
		}

		if gzipEnabled {
			gz, gzErr := gzip.NewReader(reader)
			if gzErr != nil {
				return fmt.Errorf("open gzip stream: %w", gzErr)
			}
			reader = gz
			closeFns = append([]func() error{gz.Close}, closeFns...)
		}

		defer func() {
			for _, closer := range closeFns {
				if cerr := closer(); cerr != nil && err == nil {
					err = cerr
				}
			}
		}()

		if err := service.Import(ctx, reader); err != nil {
			return fmt.Errorf("import backup: %w", err)
		}

		cmd.Println("import complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("input", "i", "", "backup input path, - for stdin")
	importCmd.Flags().Bool("gzip", false, "treat input as gzip-compressed")
	importCmd.Flags().Int("batch-size", 0, "import batch size (default 512)")

	bindFlagToViper(importInputKey, importCmd.Flags().Lookup("input"))
	bindFlagToViper(importGzipKey, importCmd.Flags().Lookup("gzip"))
	bindFlagToViper(importBatchKey, importCmd.Flags().Lookup("batch-size"))
}
