package command

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roomchat/cmd/cli/command/client"
	"roomchat/internal/microservices/http-api/dto"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Room commands",
	Long:  `List rooms, read their history and, as an admin, create or delete them.`,
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		list, err := client.NewHTTPClient(apiURL).ListRooms(ctx)
		if err != nil {
			return err
		}
		if list.Count == 0 {
			fmt.Println("No rooms yet.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tPIN\tANON\tONLINE\tMESSAGES\tDESCRIPTION")
		for _, r := range list.Rooms {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.Name, r.Type, yesNo(r.HasPin), yesNo(r.AllowAnonymous), r.Stats.Members, r.Stats.Messages, r.Description)
		}
		return tw.Flush()
	},
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.CreateRoomRequest{Name: args[0]}
		req.Description, _ = cmd.Flags().GetString("description")
		req.Type, _ = cmd.Flags().GetString("type")
		req.AllowAnonymous, _ = cmd.Flags().GetBool("anonymous")
		if cmd.Flags().Changed("pin") {
			pin, _ := cmd.Flags().GetString("pin")
			req.Pin = &pin
		}
		if cmd.Flags().Changed("max-file-mb") {
			mb, _ := cmd.Flags().GetInt("max-file-mb")
			req.MaxFileMB = &mb
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		httpClient, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		room, err := httpClient.CreateRoom(ctx, &req)
		if err != nil {
			return fmt.Errorf("create room failed: %w", err)
		}

		fmt.Printf("✓ Room %s created (%s)\n", room.Name, room.Type)
		if room.Pin != nil && *room.Pin != "" {
			color.Yellow("PIN: %s  (shown once, share it with members)", *room.Pin)
		}
		return nil
	},
}

var roomDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a room with its messages (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		httpClient, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		res, err := httpClient.DeleteRoom(ctx, args[0])
		if err != nil {
			return fmt.Errorf("delete room failed: %w", err)
		}
		fmt.Printf("✓ Room %s deleted: %d message(s) removed, %d user(s) moved out\n",
			res.Room, res.MessagesDeleted, res.UsersCleared)
		return nil
	},
}

var roomMessagesCmd = &cobra.Command{
	Use:   "messages <name>",
	Short: "Print the recent history of a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := requestContext(cmd)
		defer cancel()
		list, err := client.NewHTTPClient(apiURL).Messages(ctx, args[0], limit)
		if err != nil {
			return err
		}
		for i := range list.Messages {
			m := &list.Messages[i]
			text := ""
			switch {
			case m.Msg != nil:
				text = *m.Msg
			case m.FileURL != nil:
				text = "📎 " + *m.FileURL
			}
			fmt.Printf("%s  #%d  %s: %s\n", m.Timestamp, m.ID, m.Username, text)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	roomCmd.AddCommand(roomListCmd, roomCreateCmd, roomDeleteCmd, roomMessagesCmd)
	rootCmd.AddCommand(roomCmd)

	roomCreateCmd.Flags().StringP("description", "d", "", "Room description")
	roomCreateCmd.Flags().StringP("type", "t", "text", "Room type: text or multimedia")
	roomCreateCmd.Flags().String("pin", "", "Room PIN; omit to generate one, pass \"\" for an open room")
	roomCreateCmd.Flags().Int("max-file-mb", 0, "Largest upload in MB for multimedia rooms")
	roomCreateCmd.Flags().Bool("anonymous", false, "Let guests join with a nickname")

	roomMessagesCmd.Flags().IntP("limit", "n", 50, "Number of messages")
}
