package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
	"github.com/agentworkforce/relaysheet/internal/logger"
)

func newDispatchCmd(a *app) *cobra.Command {
	var (
		data     string
		sentence bool
	)
	cmd := &cobra.Command{
		Use:   "dispatch <action>",
		Short: "Run one action against the configured store and print the result",
		Long: `Run one action directly against the table store, bypassing HTTP.

Actions: createJobDetails, getJob, reschedule, cancellation, logEmergency,
collectInquiryDetails. --data takes a JSON object, or "-" to read it from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(data, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req, err := callsheet.StrictRequest(args[0], payload)
			if err != nil {
				return err
			}
			svc, closeStore, err := openService(cmd.Context(), a.cfg, callsheet.ServiceOptions{
				Logger: logger.ComponentLogger("callsheet"),
			})
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := callsheet.NewDispatcher(svc).Handle(cmd.Context(), req)
			if err != nil {
				return errors.Wrapf(err, "dispatch %s", req.Action)
			}
			out := cmd.OutOrStdout()
			if sentence {
				_, err = fmt.Fprintln(out, result.Sentence())
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", `action payload as a JSON object, or "-" for stdin`)
	cmd.Flags().BoolVar(&sentence, "sentence", false, "print the spoken sentence instead of JSON")
	return cmd
}

func readPayload(data string, stdin io.Reader) (callsheet.Payload, error) {
	raw := []byte(strings.TrimSpace(data))
	if string(raw) == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, errors.Wrap(err, "read payload from stdin")
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return callsheet.Payload{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "--data must be a JSON object")
	}
	return callsheet.Payload(payload), nil
}
