package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/spf13/cobra"
)

func newAskCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and stream the answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			if opts.audio != "" {
				question, err = opts.transcribe(cmd.Context(), logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "> %s\n", question)
			}
			if strings.TrimSpace(question) == "" {
				return errors.New("a question or --audio is required")
			}

			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			session := opts.newSession(p, logger)

			if _, err := session.Submit(question); err != nil {
				_ = session.Close(context.Background())
				return err
			}

			waitErr := p.wait(cmd.Context(), 1)
			if err := session.Close(context.Background()); err != nil {
				return err
			}
			if waitErr != nil {
				return waitErr
			}
			if ex := p.last(); ex.State == models.ExchangeErrored {
				return fmt.Errorf("exchange failed: %s", ex.Error)
			}
			return nil
		},
	}
}
