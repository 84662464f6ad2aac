package context

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(bytes.NewBuffer(nil))

	ctx := WithJobName(WithRunID(Background(), "r1"), "build")
	ctx.Logger().Info("hello")

	out := buf.String()
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "job=build")
	assert.Contains(t, out, "message=hello")
}

func TestSetLogLevel(t *testing.T) {
	require.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("debug"))
	require.NoError(t, SetLogLevel("info"))
}

func TestDerivedContextsKeepRunInformation(t *testing.T) {
	ctx := WithJobName(WithRunID(Background(), "r1"), "test")

	tctx, cancel := WithTimeout(ctx, time.Millisecond)
	defer cancel()
	assert.Equal(t, "r1", tctx.RunID())
	assert.Equal(t, "test", tctx.JobName())
	<-tctx.Done()

	cctx, cancel := WithCancel(ctx)
	cancel()
	assert.Equal(t, "test", cctx.JobName())
	assert.Error(t, cctx.Err())

	assert.Equal(t, ctx, FromContext(ctx))
	assert.Equal(t, "", FromContext(Background()).RunID())
}
