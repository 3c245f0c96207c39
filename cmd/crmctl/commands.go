package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/listing"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/shared"
)

type missingConfigError struct{ keys []string }

func (e *missingConfigError) Error() string {
	return "missing configuration: " + strings.Join(e.keys, ", ")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func renderCmd(deps func() *shared.Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "render <object-id>",
		Short: "Print the chat summary of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := deps().Objects.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}
}

func reconcileCmd(deps func() *shared.Deps) *cobra.Command {
	var (
		apply bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Backfill missing CIAN ids and URLs",
		Long: `Derives the CIAN id and URL of each object from the fields that carry one
and lists the patches that would fill the missing ones. With --apply the
patches are written and journaled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps()
			if apply {
				rep, err := d.Objects.BackfillAll(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rep)
			}

			recs, err := d.Store.ListObjects(cmd.Context(), domain.ListQuery{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pending := 0
			for _, rec := range recs {
				res := listing.Reconcile(rec)
				if len(res.Patch) == 0 {
					continue
				}
				pending++
				b, err := json.Marshal(res.Patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", listing.RecordKey(rec, d.Store.IDColumn()), b)
			}
			fmt.Fprintf(out, "%d of %d objects need a patch (dry run)\n", pending, len(recs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the patches")
	cmd.Flags().IntVar(&limit, "limit", 200, "objects to scan (max 200)")
	return cmd
}

func publishCheckCmd(deps func() *shared.Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-check <url>",
		Short: "Check a cian.ru or avito.ru link against the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := deps().Objects.PublishCheck(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func resetOwnerCmd(deps func() *shared.Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-owner <owner-id>",
		Short: "Queue an owner for re-parsing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := deps().Objects.ResetOwner(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func syncStatusesCmd(deps func() *shared.Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-statuses",
		Short: "Map CIAN offer statuses onto the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := deps().Cian.SyncStatuses(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
