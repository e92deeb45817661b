package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		metas, err := a.manager.List(ctx)
		if err != nil {
			return err
		}
		if len(metas) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, meta := range metas {
			name := meta.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %s  %s\n", meta.ID, meta.CreatedAt.Format("2006-01-02 15:04"), name)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session and its workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return a.manager.Delete(ctx, args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
