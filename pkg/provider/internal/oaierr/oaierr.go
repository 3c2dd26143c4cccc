// Package oaierr maps errors returned by the openai-go SDK onto the sentinel
// errors in pkg/types.
package oaierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/audioscribe/pkg/types"
)

// Classify wraps err with the sentinel that best describes it and prefixes op.
// A nil err yields nil.
//
//   - HTTP 401 and 403 wrap [types.ErrAuth].
//   - Elapsed deadlines and transport timeouts wrap [types.ErrTimeout].
//   - Everything else wraps [types.ErrRemote].
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", types.ErrAuth, op, err)
		}
		return fmt.Errorf("%w: %s: %w", types.ErrRemote, op, err)
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrRemote, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
