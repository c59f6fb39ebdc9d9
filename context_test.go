package simplex

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendermint/tendermint/libs/log"
)

func TestContext(t *testing.T) {
	bg := context.Background()

	// try logger with default
	var buf bytes.Buffer
	newLogger := log.NewTMLogger(&buf)
	ctx := WithLogger(bg, newLogger)
	assert.Equal(t, DefaultLogger, GetLogger(bg))
	assert.Equal(t, newLogger, GetLogger(ctx))

	// changing the info modifies the logger of the new context only
	ctx2 := WithLogInfo(ctx, "channel", "abc")
	assert.NotEqual(t, GetLogger(ctx), GetLogger(ctx2))
	assert.Equal(t, newLogger, GetLogger(ctx))

	GetLogger(ctx2).Info("handled")
	assert.Contains(t, buf.String(), "channel=abc")
}
