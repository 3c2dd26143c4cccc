package oaierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/audioscribe/pkg/types"
)

// apiError builds an SDK error with the request and response populated, as
// Error() dereferences both.
func apiError(code int) *oai.Error {
	return &oai.Error{
		StatusCode: code,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/audio/transcriptions", nil),
		Response:   &http.Response{StatusCode: code},
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unauthorized", err: apiError(http.StatusUnauthorized), want: types.ErrAuth},
		{name: "forbidden", err: apiError(http.StatusForbidden), want: types.ErrAuth},
		{name: "server error", err: apiError(http.StatusBadGateway), want: types.ErrRemote},
		{name: "rate limited", err: apiError(http.StatusTooManyRequests), want: types.ErrRemote},
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: types.ErrTimeout},
		{name: "cancelled", err: context.Canceled, want: types.ErrRemote},
		{name: "transport", err: errors.New("connection refused"), want: types.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify("transcribe", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify(%v) = %v, want wrapping %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("Classify(%v) lost the cause", tt.err)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	t.Parallel()

	if err := Classify("op", nil); err != nil {
		t.Errorf("Classify(nil) = %v, want nil", err)
	}
}
