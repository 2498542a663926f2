package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

var albumsCmd = &cobra.Command{
	Use:   "albums [did]",
	Short: "List photo albums",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		albums, err := newService().GetPhotoAlbums(cmd.Context(), did)
		warnDegraded(err)
		for _, a := range albums {
			fmt.Printf("%s\t%s\t%s\n", a.RKey, a.Value.Visibility, a.Value.Name)
		}
		return nil
	},
}

var newAlbumCmd = &cobra.Command{
	Use:   "new-album <name>",
	Short: "Create a photo album",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		album, err := newService().CreatePhotoAlbum(cmd.Context(), client, domain.AlbumInput{
			Name:        args[0],
			Description: description,
		})
		if err != nil {
			return err
		}
		logger.Info("album created", "rkey", album.RKey)
		return nil
	},
}

var deleteAlbumCmd = &cobra.Command{
	Use:   "delete-album <rkey>",
	Short: "Delete an album and every photo in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		return newService().DeletePhotoAlbum(cmd.Context(), client, args[0])
	},
}

var uploadPhotoCmd = &cobra.Command{
	Use:   "upload <album-rkey> <file>",
	Short: "Upload a photo to an album",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
		caption, _ := cmd.Flags().GetString("caption")

		photo, err := newService().UploadPhoto(cmd.Context(), client, args[0], data, "", caption, nil)
		if err != nil {
			return err
		}
		fmt.Println(domain.PhotoURL(client.DID(), photo.Value.Image))
		return nil
	},
}

var photosCmd = &cobra.Command{
	Use:   "photos <album-rkey> [did]",
	Short: "List the photos in an album",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args[1:])
		if err != nil {
			return err
		}
		photos, err := newService().GetAlbumPhotos(cmd.Context(), did, args[0])
		warnDegraded(err)
		for _, p := range photos {
			fmt.Printf("%s\t%s\t%s\n", p.RKey, domain.PhotoURL(did, p.Value.Image), p.Value.Caption)
		}
		return nil
	},
}

func init() {
	newAlbumCmd.Flags().String("description", "", "album description")
	uploadPhotoCmd.Flags().String("caption", "", "photo caption")

	RootCmd.AddCommand(albumsCmd, newAlbumCmd, deleteAlbumCmd, uploadPhotoCmd, photosCmd)
}
