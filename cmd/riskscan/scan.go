package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	jsonOutput  bool
	screenshots bool
	inputFile   string
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a single URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := build(cfg, logger, screenshots)
		defer c.Close()

		result, err := c.scanner.Scan(cmd.Context(), args[0], screenshots)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSONTo(cmd.OutOrStdout(), result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Scan several URLs and summarize them",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if inputFile != "" {
			fromFile, err := readURLs(inputFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}

		c := build(cfg, logger, screenshots)
		defer c.Close()

		batch, err := c.scanner.ScanBatch(cmd.Context(), urls, screenshots)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSONTo(cmd.OutOrStdout(), batch)
		}
		printBatch(cmd.OutOrStdout(), batch)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, batchCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
		c.Flags().BoolVar(&screenshots, "screenshots", false, "capture screenshots (needs Chrome)")
	}
	batchCmd.Flags().StringVarP(&inputFile, "file", "f", "", "file with one URL per line")
}

// readURLs reads one URL per line, skipping blanks and # comments
func readURLs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var urls []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return urls, nil
}

func writeJSONTo(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
