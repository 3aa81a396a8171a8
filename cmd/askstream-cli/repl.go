package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/spf13/cobra"
)

func newREPLCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask every line read from stdin, answering them in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			session := opts.newSession(p, logger)
			defer func() {
				_ = session.Close(context.Background())
			}()

			submitted := 0
			if opts.audio != "" {
				question, err := opts.transcribe(cmd.Context(), logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "> %s\n", question)
				if _, err := session.Submit(question); err == nil {
					submitted++
				}
			}

			lines := make(chan string)
			scanErr := make(chan error, 1)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-cmd.Context().Done():
						return
					}
				}
				scanErr <- scanner.Err()
			}()

		loop:
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						break loop
					}
					_, err := session.Submit(line)
					switch {
					case err == nil:
						submitted++
					case errors.Is(err, chat.ErrEmptyQuestion):
					case errors.Is(err, chat.ErrQueueFull):
						fmt.Fprintln(cmd.ErrOrStderr(), "too many pending questions, skipped:", line)
					default:
						return err
					}
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}

			select {
			case err := <-scanErr:
				if err != nil {
					return fmt.Errorf("error reading input: %w", err)
				}
			default:
			}

			return p.wait(cmd.Context(), submitted)
		},
	}
}
