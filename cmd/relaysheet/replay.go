package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/relaysheet/internal/logger"
	"github.com/agentworkforce/relaysheet/internal/webhookclient"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		baseURL     string
		route       string
		maxRetries  int
		failOnError bool
	)
	cmd := &cobra.Command{
		Use:   "replay <file.jsonl|->",
		Short: "Post recorded call events to a running webhook",
		Long: `Replay reads one JSON request body per line and posts each to --route.
Blank lines and lines starting with '#' are skipped. Bodies are signed with the
configured signature secret and a fresh timestamp when a secret is set.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationStore: "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open replay file")
				}
				defer f.Close()
				input = f
			}

			client := webhookclient.NewClient(baseURL, webhookclient.Options{
				Secret:          a.cfg.Signature.Secret,
				SignatureHeader: a.cfg.Signature.Header,
				TimestampHeader: a.cfg.Signature.TimestampHeader,
				MaxRetries:      maxRetries,
			})
			log := logger.ComponentLogger("replay")
			out := cmd.OutOrStdout()
			summary, err := webhookclient.Replay(cmd.Context(), client, input, route, func(r webhookclient.ReplayResult) {
				if r.Err != nil {
					log.Warnw("replay line failed", "line", r.Line, logger.FieldError, r.Err)
					fmt.Fprintf(out, "%d\tERROR\t%v\n", r.Line, r.Err)
					return
				}
				fmt.Fprintf(out, "%d\t%d\t%s\n", r.Line, r.Response.StatusCode, r.Response.Body)
			})
			if err != nil {
				return err
			}
			log.Infow("replay finished", "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
			if failOnError && summary.Failed > 0 {
				return errors.Newf("%d of %d lines failed", summary.Failed, summary.Sent+summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "webhook base URL")
	cmd.Flags().StringVar(&route, "route", "/", "route to post to, e.g. /v1/webhook or /v1/voice")
	cmd.Flags().IntVar(&maxRetries, "retries", 0, "retries for refused connections, 429 and 503 (0 uses the default, negative disables)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any line fails")
	return cmd
}
