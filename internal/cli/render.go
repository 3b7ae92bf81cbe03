package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/pkg/di"
	"github.com/goliatone/go-content-placeholders/rendering"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// placeholderFlags select one placeholder and how it is rendered.
type placeholderFlags struct {
	parentType int64
	parentID   int64
	slot       string
	language   string
	fallback   string
	template   string
}

func (f *placeholderFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.parentType, "parent-type", 0, "parent type id")
	cmd.Flags().Int64Var(&f.parentID, "parent-id", 0, "parent object id")
	cmd.Flags().StringVar(&f.slot, "slot", "", "placeholder slot name")
	cmd.Flags().StringVar(&f.language, "lang", "", "render language")
	cmd.Flags().StringVar(&f.fallback, "fallback", "", `fallback language, or "default" for the site default`)
	cmd.Flags().StringVar(&f.template, "template", "", "merge template name")
	_ = cmd.MarkFlagRequired("parent-type")
	_ = cmd.MarkFlagRequired("parent-id")
	_ = cmd.MarkFlagRequired("slot")
}

func (f *placeholderFlags) lookup(ctx context.Context, c *di.Container) (*content.Placeholder, error) {
	parent := content.ParentRef{TypeID: f.parentType, ID: f.parentID}
	ph, err := c.Repository().PlaceholderBySlot(ctx, parent, f.slot)
	if err != nil {
		return nil, fmt.Errorf("placeholder %s/%s: %w", parent, f.slot, err)
	}
	return ph, nil
}

func (f *placeholderFlags) withLanguage(ctx context.Context) context.Context {
	if f.language != "" {
		ctx = reqctx.WithLanguage(ctx, f.language)
	}
	return ctx
}

func (f *placeholderFlags) options() []rendering.RenderOption {
	var opts []rendering.RenderOption
	if f.language != "" {
		opts = append(opts, rendering.WithParentLanguage(f.language))
	}
	switch f.fallback {
	case "":
	case "default":
		opts = append(opts, rendering.WithDefaultFallback())
	default:
		opts = append(opts, rendering.WithFallbackLanguage(f.fallback))
	}
	if f.template != "" {
		opts = append(opts, rendering.WithTemplate(f.template))
	}
	return opts
}

func newRenderCommand(a *app) *cobra.Command {
	var (
		flags placeholderFlags
		edit  bool
	)
	cmd := &cobra.Command{
		Use:     "render",
		Aliases: []string{"r"},
		Short:   "Render one placeholder to stdout",
		Long: `Render one placeholder with its frontend media tags.

A plugin redirect is printed as "redirect <status> <url>".

Examples:
  placeholders render --parent-type 5 --parent-id 1 --slot main
  placeholders render --parent-type 5 --parent-id 1 --slot main --lang nl --fallback default`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := reqctx.WithFrontendMedia(flags.withLanguage(cmd.Context()))
			if edit {
				ctx = reqctx.WithEditMode(ctx, true)
			}
			ph, err := flags.lookup(ctx, c)
			if err != nil {
				return err
			}
			out, err := c.Engine().RenderPlaceholder(ctx, ph, flags.options()...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out.Redirect != nil {
				_, err = fmt.Fprintf(w, "redirect %d %s\n", out.Redirect.StatusOrDefault(), out.Redirect.URL)
				return err
			}
			rendering.RegisterFrontendMedia(ctx, out.Media)
			_, err = fmt.Fprint(w, rendering.FrontendMedia(ctx).HTML(), out.HTML)
			return err
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&edit, "edit", false, "wrap output in edit markers")
	return cmd
}

func newSearchTextCommand(a *app) *cobra.Command {
	var flags placeholderFlags
	cmd := &cobra.Command{
		Use:   "search-text",
		Short: "Print the search index text of one placeholder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := flags.withLanguage(cmd.Context())
			ph, err := flags.lookup(ctx, c)
			if err != nil {
				return err
			}
			text, err := c.Engine().RenderPlaceholderSearchText(ctx, ph, flags.options()...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	flags.bind(cmd)
	return cmd
}
