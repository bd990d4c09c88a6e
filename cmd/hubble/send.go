package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/hubble/pkg/hubble"
	"github.com/bft-labs/hubble/pkg/log"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		file   string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post one batch and print the response",
		Long: `Post one batch. The batch is read from --file, from stdin when no
--field is given, and extended with --field key=value pairs. Field values
that parse as JSON are sent as JSON; anything else is sent as a string.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd.InOrStdin(), file, len(fields) == 0)
			if err != nil {
				return err
			}
			if err := applyFields(batch, fields); err != nil {
				return err
			}

			resp, err := a.client.Post(cmd.Context(), a.cfg.WriteKey, batch, a.cfg.PostOptions()...)
			if err != nil {
				return fmt.Errorf("post batch: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			a.logger.Info("batch posted", log.Int("status", resp.StatusCode))
			if len(body) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "batch file (JSON object); - for stdin")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "additional batch field as key=value (repeatable)")
	return cmd
}

// readBatch loads the base batch. Without a file, stdin is read only when
// useStdin is set; otherwise the batch starts empty.
func readBatch(stdin io.Reader, file string, useStdin bool) (hubble.Batch, error) {
	switch {
	case file == "-" || (file == "" && useStdin):
		return hubble.DecodeBatch(stdin)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open batch: %w", err)
		}
		defer f.Close()
		return hubble.DecodeBatch(f)
	default:
		return hubble.Batch{}, nil
	}
}

// applyFields sets each key=value pair on batch, later pairs winning.
func applyFields(batch hubble.Batch, fields []string) error {
	for _, kv := range fields {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid field %q: want key=value", kv)
		}
		batch[key] = fieldValue(value)
	}
	return nil
}

func fieldValue(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}
