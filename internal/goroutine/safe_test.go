package goroutine

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	done := make(chan struct{})
	SafeGo(logger, "boom", func() {
		defer close(done)
		panic("kaput")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}

	require.Eventually(t, func() bool { return len(hook.AllEntries()) == 1 }, time.Second, time.Millisecond)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "PANIC: kaput")
	assert.Equal(t, "boom", entry.Data["goroutine"])
}

func TestRecover_NoPanicIsSilent(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	func() {
		defer Recover(logger, "quiet")
	}()
	assert.Empty(t, hook.AllEntries())
}
