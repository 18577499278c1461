package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newUserCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			u, err := svc.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), u)
		},
	}
}

func newFileCommand(opts *RootOptions) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "file <owner> <repo> <path>",
		Short: "Print a file from a repository",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			content, err := svc.GetFileContent(cmd.Context(), args[0], args[1], ref, args[2])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(content))
			return err
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "HEAD", "git ref to read from")
	return cmd
}

func newPullRequestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pr",
		Short: "Pull request operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "files <owner> <repo> <number>",
		Short: "List the files changed by a pull request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			files, err := svc.GetPullRequestFiles(cmd.Context(), args[0], args[1], n)
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), files)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mine <owner> <repo> <user>",
		Short: "List open coding agent pull requests involving a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			prs, err := svc.CopilotPullRequestsForUser(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), prs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "close <owner> <repo> <number>",
		Short: "Close a pull request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return err
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			closed, err := svc.ClosePullRequest(cmd.Context(), args[0], args[1], n)
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), map[string]bool{"closed": closed})
		},
	})

	return cmd
}

func newSessionsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions <owner/repo>",
		Short: "List open agent sessions for a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			sessions, err := svc.GetAllOpenSessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), sessions)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "logs <session-id>",
		Short: "Print the logs of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			logs, err := svc.GetSessionLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(logs))
			return err
		},
	})

	return cmd
}

func newAgentsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents <owner> <repo>",
		Short: "List the custom agents configured for a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			agents, err := svc.GetCustomAgents(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), agents)
		},
	}
}
