package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"connecto/feed"
	"connecto/models"
)

func (a *App) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Fetch and print the post feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.feed.Refresh(cmd.Context()); err != nil {
				return err
			}

			sess, err := a.store.Get(cmd.Context())
			if err != nil {
				return err
			}

			posts := a.feed.Posts()
			if len(posts) == 0 {
				fmt.Fprintln(a.out, "No posts available.")
				return nil
			}
			for _, post := range posts {
				owner := ""
				if feed.IsOwner(sess, post) {
					owner = " (you)"
				}
				fmt.Fprintf(a.out, "%s  %s%s  %s\n", post.ID, post.User.Username, owner,
					post.CreatedAt.Local().Format("Jan 2 2006 15:04"))
				if post.Caption != "" {
					fmt.Fprintf(a.out, "  %s\n", post.Caption)
				}
				if post.Image != "" {
					fmt.Fprintf(a.out, "  [image] %s\n", post.Image)
				}
			}
			return nil
		},
	}
}

func (a *App) postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, edit or delete posts",
	}
	cmd.AddCommand(a.postCreateCmd(), a.postEditCmd(), a.postDeleteCmd())
	return cmd
}

func (a *App) postCreateCmd() *cobra.Command {
	var caption, imagePath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a post with a caption and/or an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			pending := models.PendingPost{Caption: caption}
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				pending.Image = data
				pending.ImageName = imagePath
			}

			if err := a.feed.Create(cmd.Context(), pending); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Posted.")
			return nil
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "post caption")
	cmd.Flags().StringVar(&imagePath, "image", "", "optional image file")
	return cmd
}

func (a *App) postEditCmd() *cobra.Command {
	var caption string

	cmd := &cobra.Command{
		Use:   "edit <post-id>",
		Short: "Replace a post's caption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.feed.Update(cmd.Context(), args[0], caption); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "new caption")
	return cmd
}

func (a *App) postDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a post after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Remove confirms against the local copy of the post.
			if err := a.feed.Refresh(cmd.Context()); err != nil {
				return err
			}
			err := a.feed.Remove(cmd.Context(), args[0])
			if errors.Is(err, feed.ErrDeclined) {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Deleted.")
			return nil
		},
	}
}
