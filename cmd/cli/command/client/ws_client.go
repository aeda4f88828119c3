package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"roomchat/internal/microservices/http-api/dto"
	chat "roomchat/internal/microservices/websocket"
)

// ws_client.go = handles WebSocket client functionality for the roomchat CLI.

type JoinOptions struct {
	APIURL   string
	Room     string
	Pin      string
	Token    string // empty joins anonymously under Nickname
	Nickname string
}

// WebSocketURL maps the API base URL onto the /ws endpoint.
func WebSocketURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func JoinChatRoom(opts JoinOptions) error {
	wsURL, err := WebSocketURL(opts.APIURL)
	if err != nil {
		return err
	}

	// Connect with auth header
	header := http.Header{}
	if opts.Token != "" {
		header.Add("Authorization", "Bearer "+opts.Token)
	}

	fmt.Printf("\n🔌 Connecting to room %s...\n", opts.Room)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	if err := writeEvent(conn, chat.EventJoin, chat.JoinPayload{
		Token:    opts.Token,
		Room:     opts.Room,
		Pin:      opts.Pin,
		Nickname: opts.Nickname,
	}); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	// Goroutine to receive events
	done := make(chan error, 1)
	go func() {
		for {
			var env chat.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				done <- err
				return
			}
			if fatal := PrintEvent(os.Stdout, &env, opts.Room); fatal != nil {
				done <- fatal
				return
			}
		}
	}()

	// Goroutine to send messages
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			event, payload := commandFor(text, opts.Room)
			if event == "" {
				interrupt <- os.Interrupt
				return
			}
			if err := writeEvent(conn, event, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}()

	select {
	case <-interrupt:
		_ = writeEvent(conn, chat.EventLeave, chat.LeavePayload{Room: opts.Room})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		return nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}

// commandFor turns one input line into an event; an empty event means quit.
func commandFor(line, room string) (chat.EventType, any) {
	switch {
	case line == "/quit":
		return "", nil
	case line == "/members":
		return chat.EventGetMembers, chat.RoomPayload{Room: room}
	case line == "/info":
		return chat.EventGetRoomInfo, chat.RoomPayload{Room: room}
	case line == "/history":
		return chat.EventGetMessages, chat.GetMessagesPayload{Room: room, Limit: 20}
	case strings.HasPrefix(line, "/search "):
		return chat.EventSearchMessages, chat.SearchMessagesPayload{Room: room, SearchTerm: strings.TrimSpace(strings.TrimPrefix(line, "/search "))}
	default:
		return chat.EventSendMessage, chat.SendMessagePayload{Room: room, Msg: line}
	}
}

func writeEvent(conn *websocket.Conn, event chat.EventType, data any) error {
	return conn.WriteJSON(chat.Outbound{Event: event, Data: data})
}

// errJoinRejected ends the session when the server refuses the join.
type errJoinRejected struct{ msg string }

func (e errJoinRejected) Error() string { return "join rejected: " + e.msg }

// PrintEvent renders one server event. It returns an error when the
// session cannot continue.
func PrintEvent(w io.Writer, env *chat.Envelope, room string) error {
	switch env.Event {
	case chat.EventJoinSuccess:
		color.New(color.FgGreen).Fprintf(w, "✅ Joined %s. Type messages, /members, /history, /search <term> or /quit\n", room)

	case chat.EventJoinError:
		var p chat.ErrorPayload
		_ = json.Unmarshal(env.Data, &p)
		return errJoinRejected{msg: p.Msg}

	case chat.EventMessage:
		var m dto.MessageResponse
		if json.Unmarshal(env.Data, &m) != nil {
			return nil
		}
		printMessage(w, &m)

	case chat.EventMessagesList:
		var list dto.MessageListResponse
		if json.Unmarshal(env.Data, &list) != nil {
			return nil
		}
		for i := range list.Messages {
			printMessage(w, &list.Messages[i])
		}

	case chat.EventSearchResults:
		var res chat.SearchResultsPayload
		if json.Unmarshal(env.Data, &res) != nil {
			return nil
		}
		color.New(color.FgYellow).Fprintf(w, "🔎 %d result(s) for %q\n", res.Count, res.SearchTerm)
		for i := range res.Results {
			printMessage(w, &res.Results[i])
		}

	case chat.EventUserJoined, chat.EventUserLeft, chat.EventUserDisconnected:
		var p chat.PresencePayload
		if json.Unmarshal(env.Data, &p) != nil {
			return nil
		}
		verb := map[chat.EventType]string{
			chat.EventUserJoined:       "joined",
			chat.EventUserLeft:         "left",
			chat.EventUserDisconnected: "disconnected",
		}[env.Event]
		color.New(color.FgYellow).Fprintf(w, "🔔 %s %s\n", displayName(p.Username, p.Nickname), verb)

	case chat.EventUserTyping:
		var p chat.UserTypingPayload
		if json.Unmarshal(env.Data, &p) == nil && p.IsTyping {
			color.New(color.FgHiBlack).Fprintf(w, "%s is typing...\n", displayName(p.Username, p.Nickname))
		}

	case chat.EventMembersList:
		var p dto.MembersResponse
		if json.Unmarshal(env.Data, &p) != nil {
			return nil
		}
		names := make([]string, 0, len(p.Members))
		for _, m := range p.Members {
			names = append(names, displayName(m.Username, m.Nickname))
		}
		color.New(color.FgYellow).Fprintf(w, "👥 %d online: %s\n", p.Count, strings.Join(names, ", "))

	case chat.EventRoomInfo:
		var p dto.RoomDetailsResponse
		if json.Unmarshal(env.Data, &p) == nil {
			color.New(color.FgYellow).Fprintf(w, "ℹ %s (%s): %s, %d online, max file %d MB\n",
				p.Name, p.Type, p.Description, p.MembersCount, p.MaxFileMB)
		}

	case chat.EventMessageDeleted:
		var p chat.MessageDeletedPayload
		if json.Unmarshal(env.Data, &p) == nil {
			color.New(color.FgHiBlack).Fprintf(w, "message #%d deleted by %s\n", p.MessageID, p.DeletedBy)
		}

	case chat.EventRoomDeleted:
		color.New(color.FgRed).Fprintf(w, "🗑  room %s was deleted\n", room)
		return errJoinRejected{msg: "room deleted"}

	case chat.EventMessageError, chat.EventError, chat.EventLeaveError:
		var p chat.ErrorPayload
		if json.Unmarshal(env.Data, &p) == nil {
			color.New(color.FgRed).Fprintf(w, "⚠ %s (%s)\n", p.Msg, p.Code)
		}
	}
	return nil
}

func printMessage(w io.Writer, m *dto.MessageResponse) {
	name := displayName(m.Username, m.Nickname)
	switch {
	case m.Msg != nil:
		color.New(color.FgCyan).Fprintf(w, "[%s] %s\n", name, *m.Msg)
	case m.FileURL != nil:
		label := *m.FileURL
		if m.OriginalFilename != nil {
			label = *m.OriginalFilename + " " + label
		}
		color.New(color.FgCyan).Fprintf(w, "[%s] 📎 %s\n", name, label)
	}
	if len(m.SecurityFlags.Issues) > 0 {
		color.New(color.FgHiRed).Fprintf(w, "  ⚠ %s risk: %s\n", m.SecurityFlags.RiskLevel, strings.Join(m.SecurityFlags.Issues, ", "))
	}
}

func displayName(username string, nickname *string) string {
	if nickname != nil && *nickname != "" {
		return *nickname
	}
	return username
}
