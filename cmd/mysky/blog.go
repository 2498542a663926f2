package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

var postCmd = &cobra.Command{
	Use:   "post [text]",
	Short: "Publish a blog post (markdown from args or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			return fmt.Errorf("--title is required")
		}
		visibility, _ := cmd.Flags().GetString("visibility")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		content, err := textFrom(args, os.Stdin)
		if err != nil {
			return err
		}

		doc, err := newService().CreateDocument(cmd.Context(), client, domain.DocumentInput{
			Title:      title,
			Content:    content,
			Tags:       tags,
			Visibility: domain.Visibility(visibility),
		})
		if err != nil {
			return err
		}
		logger.Info("post published", "uri", doc.URI, "rkey", doc.RKey)
		return nil
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts [did]",
	Short: "List blog posts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		drafts, _ := cmd.Flags().GetBool("drafts")

		svc := newService()
		var docs []domain.DocumentRecord
		if drafts {
			docs, err = svc.GetDraftDocuments(cmd.Context(), did, limit)
		} else {
			docs, err = svc.GetPublishedDocuments(cmd.Context(), did, limit)
		}
		warnDegraded(err)

		for _, d := range docs {
			fmt.Printf("%s\t%s\t%s\n", d.Value.PublishedAt, d.RKey, d.Value.Title)
		}
		return nil
	},
}

var unpostCmd = &cobra.Command{
	Use:   "unpost <rkey>",
	Short: "Delete one of your blog posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		return newService().DeleteDocument(cmd.Context(), client, args[0])
	},
}

var bulletinCmd = &cobra.Command{
	Use:   "bulletin <subject> [body]",
	Short: "Post a bulletin",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		body, err := textFrom(args[1:], os.Stdin)
		if err != nil {
			return err
		}
		return newService().PostBulletin(cmd.Context(), client, args[0], body)
	},
}

var bulletinsCmd = &cobra.Command{
	Use:   "bulletins [did]",
	Short: "List bulletins",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		bulletins, err := newService().GetBulletins(cmd.Context(), did, 0)
		warnDegraded(err)
		for _, b := range bulletins {
			fmt.Printf("[%s] %s\n%s\n\n", b.CreatedAt, b.Subject, b.Body)
		}
		return nil
	},
}

func init() {
	postCmd.Flags().StringP("title", "t", "", "post title")
	postCmd.Flags().String("visibility", string(domain.VisibilityPublic), "public, friends or draft")
	postCmd.Flags().StringSlice("tag", nil, "tag (repeatable)")

	postsCmd.Flags().IntP("limit", "n", 20, "maximum posts to scan")
	postsCmd.Flags().Bool("drafts", false, "list drafts instead of published posts")

	RootCmd.AddCommand(postCmd, postsCmd, unpostCmd, bulletinCmd, bulletinsCmd)
}
