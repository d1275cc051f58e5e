package lognotify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_LogsCode(t *testing.T) {
	var buf bytes.Buffer
	n := New(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.SendOTP(context.Background(), "a@x.com", "482913"))
	assert.Contains(t, buf.String(), "email=a@x.com")
	assert.Contains(t, buf.String(), "code=482913")
}
