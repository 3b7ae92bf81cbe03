package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

func newRemoveStaleItemsCommand(a *app) *cobra.Command {
	var dryRun, removeUnreferenced bool
	cmd := &cobra.Command{
		Use:   "remove-stale-items",
		Short: "Delete content items no plugin or parent owns",
		Long: `Delete content items whose type no longer has a registered plugin.

With --remove-unreferenced, items whose parent owns no placeholder anymore are
removed too.

Examples:
  placeholders remove-stale-items --dry-run
  placeholders remove-stale-items --remove-unreferenced`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			known, err := c.Plugins().TypeIDs()
			if err != nil {
				return err
			}
			stale, err := c.Store().StaleItems(ctx, known)
			if err != nil {
				return fmt.Errorf("find stale items: %w", err)
			}
			report(w, "stale", stale)
			ids := itemIDs(stale)

			if removeUnreferenced {
				parentTypes, err := c.Store().ParentTypes(ctx)
				if err != nil {
					return fmt.Errorf("list parent types: %w", err)
				}
				for _, parentType := range parentTypes {
					live, err := c.Store().PlaceholderParents(ctx, parentType)
					if err != nil {
						return fmt.Errorf("list parents of type %d: %w", parentType, err)
					}
					unreferenced, err := c.Store().UnreferencedItems(ctx, parentType, live)
					if err != nil {
						return fmt.Errorf("find unreferenced items: %w", err)
					}
					report(w, "unreferenced", unreferenced)
					ids = appendUnique(ids, itemIDs(unreferenced)...)
				}
			}

			if dryRun {
				fmt.Fprintf(w, "would remove %d items\n", len(ids))
				return nil
			}
			deleted, err := c.Store().DeleteItems(ctx, ids)
			if err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
			fmt.Fprintf(w, "removed %d items\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	cmd.Flags().BoolVar(&removeUnreferenced, "remove-unreferenced", false, "also remove items whose parent is gone")
	return cmd
}

func report(w io.Writer, kind string, items []content.Item) {
	for _, item := range items {
		fmt.Fprintf(w, "%s item #%d type=%d parent=%s\n", kind, item.ID, item.TypeID, item.Parent)
	}
}

func itemIDs(items []content.Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func appendUnique(ids []int64, more ...int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range more {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func newCacheKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-keys <item-id>",
		Short: "Print every cache key the output of an item may live under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := c.Repository().Items(cmd.Context(), []int64{id})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("item %d: %w", id, content.ErrNotFound)
			}
			keys, err := c.Engine().ItemCacheKeys(cmd.Context(), items[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			return err
		},
	}
}

func newPluginsCommand(a *app) *cobra.Command {
	var slot string
	cmd := &cobra.Command{
		Use:     "plugins",
		Aliases: []string{"l"},
		Short:   "List registered plugins",
		Long: `List registered plugins with their model, type id and cache policy.

Examples:
  placeholders plugins
  placeholders plugins --slot sidebar   # plugins allowed in the sidebar slot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			var plugins []plugin.Plugin
			if slot != "" {
				plugins, err = c.Plugins().AllowedPlugins(slot)
			} else {
				plugins, err = c.Plugins().Plugins()
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODEL\tTYPE\tCACHE\tSEARCH")
			for _, p := range plugins {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Name(), p.Model().Name, p.Model().TypeID,
					describeCache(p.CachePolicy()), describeSearch(plugin.SearchPolicyOf(p)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "", "only plugins allowed in this slot")
	return cmd
}

func describeCache(policy plugin.CachePolicy) string {
	if !policy.CacheOutput() {
		return "off"
	}
	var parts []string
	if policy.PerSite {
		parts = append(parts, "site")
	}
	if policy.PerLanguage {
		parts = append(parts, "language")
	}
	if len(parts) == 0 {
		return "on"
	}
	return strings.Join(parts, ",")
}

func describeSearch(policy plugin.SearchPolicy) string {
	switch {
	case policy.Output:
		return "output"
	case len(policy.Fields) > 0:
		return strings.Join(policy.Fields, ",")
	}
	return "-"
}
