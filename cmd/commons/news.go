// ABOUTME: news subcommands for reading and posting to the feed
// ABOUTME: Posting requires an admin actor; like toggles the actor's like

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/store"
)

func newNewsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Read and post news",
	}
	cmd.AddCommand(
		newNewsListCmd(flags),
		newNewsPostCmd(flags),
		newNewsLikeCmd(flags),
	)
	return cmd
}

func newNewsListCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List news, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			items, err := a.content.ListNews(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLIKES\tCOMMENTS\tPOSTED")
			for _, n := range items {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					n.ID, n.Title, n.LikeCount, n.CommentCount, n.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items")
	return cmd
}

func newNewsPostCmd(flags *globalFlags) *cobra.Command {
	var in content.NewsInput
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a news item (admin)",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			n, err := a.content.CreateNews(ctx, actor, in)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "  ✓ Posted %q (%s)\n", n.Title, n.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Markdown body")
	cmd.Flags().StringVar(&in.Image, "image", "", "Image URL")
	cmd.Flags().StringVar(&in.Link, "link", "", "Link URL")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newNewsLikeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "like ID",
		Short: "Toggle your like on a news item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			liked, count, err := a.content.Toggle(ctx, actor, store.LikeNews, args[0])
			if err != nil {
				return err
			}
			state := "unliked"
			if liked {
				state = "liked"
			}
			fmt.Fprintf(out, "  %s (%d likes)\n", state, count)
			return nil
		}),
	}
}
