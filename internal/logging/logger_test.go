package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput("debug", "json", buf)

	logger.WithField("asset_id", "a1").Debug("asset locked")

	out := buf.String()
	assert.Contains(t, out, `"msg":"asset locked"`)
	assert.Contains(t, out, `"asset_id":"a1"`)
	assert.Contains(t, out, `"level":"debug"`)
}

func TestNewWithOutput_TextAndBadLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput("nonsense", "text", buf)

	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard()
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
