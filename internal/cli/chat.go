package cli

import (
	"fmt"

	"github.com/ppiankov/labkit/internal/chat"
	"github.com/ppiankov/labkit/internal/session"
	"github.com/spf13/cobra"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a bot that remembers the last exchange",
	Long: `Start an interactive chatbot. The bot keeps its greeting plus the two
most recent messages. After each answer it offers more information; reply
"no" to move on.

Commands:
  /reset   start a fresh conversation
  exit     quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	client, err := a.llmClient()
	if err != nil {
		return err
	}
	bot := chat.NewBot(client, a.tierModel(), a.log)

	mgr := session.NewManager(a.cfg.Chat.Greeting, a.cfg.Session.IdleTTL, func(s *session.Session) {
		a.log.Debug("session %s ended with %d messages", s.ID, s.Len())
	})
	defer mgr.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess := mgr.GetOrCreate("")
	greet := func() {
		a.out.Text("🤖 " + sess.History()[0].Content)
	}
	greet()

	return repl(ctx, a.in, a.out.Writer(), "> ", func(line string) {
		if line == "/reset" {
			mgr.End(sess.ID)
			sess = mgr.GetOrCreate("")
			greet()
			return
		}

		// a session idle past its TTL comes back fresh
		if next := mgr.GetOrCreate(sess.ID); next != sess {
			sess = next
			a.out.Info("Session expired, starting over.")
		}

		if _, err := bot.Turn(ctx, sess, line, a.out.Writer()); err != nil {
			a.fail(err)
			return
		}
		fmt.Fprintln(a.out.Writer())
	})
}
