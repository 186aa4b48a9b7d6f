package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Relay today's prices once",
		Long: `Signs in, extracts every configured commodity's report, posts the combined
table to Slack and signs out. With --dry-run the table is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			appInstance.Logger().Info("run command finished",
				zap.String("run_id", res.RunID),
				zap.Int("rows", res.Table.Len()))
			return nil
		},
	}
}
