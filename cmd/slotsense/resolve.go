package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/server"
)

var resolveCmd = &cobra.Command{
	Use:   `resolve "<query>"`,
	Short: "Resolve one request against the configured calendar and print the decision as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		conversationID, err := cmd.Flags().GetString("conversation")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), instanceProfile)
		if err != nil {
			return err
		}
		defer a.Close()

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		decision, err := a.scheduler.Resolve(cmd.Context(), scheduler.ResolveRequest{
			Query:          strings.Join(args, " "),
			ConversationID: conversationID,
		})
		if err != nil {
			_, body := server.ErrorResponse(err)
			if encodeErr := out.Encode(body); encodeErr != nil {
				fmt.Fprintln(os.Stderr, body.Message)
			}
			return errors.Wrap(err, "resolve failed")
		}
		return out.Encode(decision)
	},
}

func init() {
	resolveCmd.Flags().String("conversation", "", "conversation id returned by a previous decision")
}
