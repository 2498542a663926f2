package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

var profileCmd = &cobra.Command{
	Use:   "profile [did]",
	Short: "Show a MySky profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		profile, err := newService().GetMySpaceProfile(cmd.Context(), did)
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Println("no MySky profile yet")
			return nil
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var moodCmd = &cobra.Command{
	Use:   "mood <mood>",
	Short: "Set your mood",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mood := strings.ToLower(args[0])
		if !domain.IsMood(mood) {
			return fmt.Errorf("unknown mood %q", mood)
		}

		client, err := agent()
		if err != nil {
			return err
		}
		svc := newService()

		profile, err := svc.GetMySpaceProfile(cmd.Context(), client.DID())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if profile == nil {
			profile = &domain.MySpaceProfile{}
		}
		profile.Mood = mood
		return svc.SaveMySpaceProfile(cmd.Context(), client, *profile)
	},
}

var friendsCmd = &cobra.Command{
	Use:   "friends [did]",
	Short: "Show top friends",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		svc := newService()
		friends, err := svc.GetTopFriends(cmd.Context(), did)
		warnDegraded(err)

		if client, err := agent(); err == nil {
			for i, p := range svc.GetProfiles(cmd.Context(), client, friends) {
				fmt.Printf("%d. %s (@%s)\n", i+1, p.DisplayName, p.Handle)
			}
			return nil
		}
		for i, f := range friends {
			fmt.Printf("%d. %s\n", i+1, f)
		}
		return nil
	},
}

var setFriendsCmd = &cobra.Command{
	Use:   "set-friends <did|handle>...",
	Short: "Replace your top friends (at most eight are kept)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		svc := newService()

		dids := make([]string, 0, len(args))
		for _, a := range args {
			if strings.HasPrefix(a, "did:") {
				dids = append(dids, a)
				continue
			}
			did, err := svc.ResolveHandle(cmd.Context(), client, strings.TrimPrefix(a, "@"))
			if err != nil {
				return fmt.Errorf("resolve %s: %w", a, err)
			}
			dids = append(dids, did)
		}
		if len(dids) > domain.MaxTopFriends {
			logger.Warn("only the first eight friends are kept", "given", len(dids))
		}
		return svc.SaveTopFriends(cmd.Context(), client, dids)
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments [did]",
	Short: "Show comments left on a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := targetDID(args)
		if err != nil {
			return err
		}
		var caller domain.Agent
		if client, err := agent(); err == nil {
			caller = client
		}

		comments, err := newService().GetProfileComments(cmd.Context(), caller, did)
		warnDegraded(err)
		for _, c := range comments {
			fmt.Printf("[%s] %s: %s\n", c.CreatedAt, c.Author, c.Content)
		}
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <did> [text]",
	Short: "Leave a comment on a profile",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		text, err := textFrom(args[1:], os.Stdin)
		if err != nil {
			return err
		}
		return newService().PostComment(cmd.Context(), client, args[0], text)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for people",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		actors, err := newService().SearchUsers(cmd.Context(), client, strings.Join(args, " "), 0)
		if err != nil {
			return err
		}
		for _, a := range actors {
			fmt.Printf("%s\t@%s\t%s\n", a.DID, a.Handle, a.DisplayName)
		}
		return nil
	},
}

var cssCmd = &cobra.Command{
	Use:   "css <file>",
	Short: "Upload a custom profile stylesheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read css: %w", err)
		}
		svc := newService()

		cid, err := svc.UploadCustomCSS(cmd.Context(), client, string(data))
		if err != nil {
			return err
		}

		profile, err := svc.GetMySpaceProfile(cmd.Context(), client.DID())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if profile == nil {
			profile = &domain.MySpaceProfile{}
		}
		profile.CustomCSSBlobRef = cid
		if err := svc.SaveMySpaceProfile(cmd.Context(), client, *profile); err != nil {
			return err
		}
		logger.Info("stylesheet uploaded", "cid", cid)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(profileCmd, moodCmd, friendsCmd, setFriendsCmd, commentsCmd, commentCmd, searchCmd, cssCmd)
}
