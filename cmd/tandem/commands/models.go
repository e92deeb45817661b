package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured providers and their models",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		def, _ := a.reg.DefaultModel()
		for _, p := range a.reg.List() {
			fmt.Printf("%s (%s)\n", p.Name(), p.ID())
			for _, m := range p.Models() {
				marker := "  "
				if def != nil && def.ProviderID == p.ID() && def.ID == m.ID {
					marker = "* "
				}
				fmt.Printf("  %s%s/%s\n", marker, p.ID(), m.ID)
			}
		}
		return nil
	},
}
