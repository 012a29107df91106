package webhookclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

const maxReplayLine = 1 << 20

// ReplayResult reports one replayed line.
type ReplayResult struct {
	Line     int
	Response Response
	Err      error
}

// ReplaySummary counts the outcome of a replay run.
type ReplaySummary struct {
	Sent    int
	Failed  int
	Skipped int
}

// Replay posts every JSON object line of r to requestPath, in order. Blank
// lines and lines starting with '#' are skipped; a line that is not valid
// JSON counts as failed without being sent. onResult may be nil.
func Replay(ctx context.Context, c *Client, r io.Reader, requestPath string, onResult func(ReplayResult)) (ReplaySummary, error) {
	var summary ReplaySummary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := ReplayResult{Line: line}
		if !json.Valid(raw) {
			result.Err = errors.Newf("line %d is not valid json", line)
		} else {
			body := append([]byte(nil), raw...)
			result.Response, result.Err = c.Post(ctx, requestPath, body)
		}
		if result.Err != nil {
			summary.Failed++
		} else {
			summary.Sent++
		}
		if onResult != nil {
			onResult(result)
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, errors.Wrap(err, "read replay input")
	}
	return summary, nil
}
