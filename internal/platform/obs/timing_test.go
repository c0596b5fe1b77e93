package obs

import (
	"context"
	"errors"
	"testing"
)

func TestTimeCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got, _ := ctx.Value(RequestIDKey).(string); got != "abc" {
		t.Fatalf("req id = %q, want abc", got)
	}

	// Both branches must be safe with and without an error.
	err := errors.New("boom")
	Time(ctx, "test.op")(&err)
	Time(context.Background(), "test.op")(nil)
}
