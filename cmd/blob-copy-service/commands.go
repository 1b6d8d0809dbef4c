package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/einyx/blob-copy-service/internal/copier"
	"github.com/einyx/blob-copy-service/internal/models"
)

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy the test blob of one region into the file share of another",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, _ := cmd.Flags().GetString("source")
			destination, _ := cmd.Flags().GetString("destination")

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.flush()

			timeout, err := timeoutFlag(cmd, a.cfg.Copy.DefaultTimeout)
			if err != nil {
				return err
			}

			result, err := a.copier.Copy(cmd.Context(), copier.CopyRequest{
				SourceLocation:      source,
				DestinationLocation: destination,
				Timeout:             timeout,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().String("source", "", "source region")
	cmd.Flags().String("destination", "", "destination region")
	cmd.Flags().Duration("timeout", 0, "how long to wait for the copy to finish (default from config)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func newCopyAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy-all",
		Short: "Copy between every pair of configured regions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.flush()

			timeout, err := timeoutFlag(cmd, a.cfg.Copy.DefaultTimeout)
			if err != nil {
				return err
			}

			results, err := a.copier.CopyAll(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().Duration("timeout", 0, "how long to wait for each copy to finish (default from config)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [blobs|files|all]",
		Short:     "List the contents of the storage accounts",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"blobs", "files", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			what := "all"
			if len(args) == 1 {
				what = args[0]
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.flush()

			var contents []models.StorageAccountContent
			switch what {
			case "blobs":
				contents, err = a.enumerator.ListBlobAccounts(cmd.Context())
			case "files":
				contents, err = a.enumerator.ListFileShareAccounts(cmd.Context())
			default:
				contents, err = a.enumerator.ListAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), contents)
		},
	}
}

// timeoutFlag returns --timeout when set and def otherwise.
func timeoutFlag(cmd *cobra.Command, def time.Duration) (time.Duration, error) {
	if !cmd.Flags().Changed("timeout") {
		return def, nil
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return 0, err
	}
	if timeout < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return timeout, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
