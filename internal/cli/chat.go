package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hray3182/DeskPal/internal/tools"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send one natural-language request to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				reply, err := a.tools.HandleMessage(cmd.Context(), strings.Join(args, " "))
				if errors.Is(err, tools.ErrNoAssistant) {
					return errors.New("AI_API_KEY is not set")
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}
