package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"roomchat/cmd/cli/authentication"
	c "roomchat/cmd/cli/command/client"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat room related commands",
	Long:  `Commands to interact with chat rooms, send and receive messages in real-time.`,
}

var chatJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a chat room",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := c.JoinOptions{APIURL: apiURL}
		opts.Room, _ = cmd.Flags().GetString("room")
		opts.Pin, _ = cmd.Flags().GetString("pin")
		opts.Nickname, _ = cmd.Flags().GetString("nickname")

		// Guests join under a nickname, everyone else uses the stored session
		if opts.Nickname == "" {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			_, creds, err := authedClient(ctx)
			if err != nil {
				if errors.Is(err, authentication.ErrNotLoggedIn) {
					return fmt.Errorf("not logged in, run 'roomchat auth login' first or pass --nickname")
				}
				return err
			}
			opts.Token = creds.AccessToken
			if !cmd.Flags().Changed("api") && creds.APIURL != "" {
				opts.APIURL = creds.APIURL
			}
		}

		return c.JoinChatRoom(opts)
	},
}

func init() {
	chatCmd.AddCommand(chatJoinCmd)
	rootCmd.AddCommand(chatCmd)

	chatJoinCmd.Flags().StringP("room", "r", "", "Room name (required)")
	chatJoinCmd.Flags().StringP("pin", "p", "", "Room PIN")
	chatJoinCmd.Flags().StringP("nickname", "n", "", "Join anonymously under this nickname")
	_ = chatJoinCmd.MarkFlagRequired("room")
}
