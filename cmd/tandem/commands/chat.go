package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatName string

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Start a conversation",
	Long: `Start a conversation with Tandem.

With a message argument the command runs one round and exits; without
one it opens an interactive prompt.

Examples:
  tandem chat "count the lines of every .go file here"
  tandem chat --name analysis`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "Session name")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.manager.Create(ctx, chatName)
	if err != nil {
		return err
	}

	renderer := newConsoleRenderer(os.Stdout)
	removeHandler := sess.Emitter().AddHandler(renderer)
	defer removeHandler()

	if message := strings.Join(args, " "); message != "" {
		_, err := sess.Chat(ctx, message)
		return err
	}

	fmt.Printf("tandem session %s with %s (ctrl-d to exit)\n",
		sess.Metadata().ID, strings.Join(sess.Roles(), ", "))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if _, err := sess.Chat(ctx, message); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}
