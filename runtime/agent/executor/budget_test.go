package executor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
)

func TestBudgetSpendsDownToZero(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := executor.NewBudget(2, time.Hour, now)
	assert.False(t, b.Exhausted())
	b.Spend()
	assert.Equal(t, 1, b.Remaining())
	b.Spend()
	assert.True(t, b.Exhausted())
	b.Spend()
	assert.Equal(t, 0, b.Remaining())
}

func TestBudgetPastDeadline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := executor.NewBudget(10, time.Minute, now)
	assert.False(t, b.PastDeadline(now.Add(30*time.Second)))
	assert.True(t, b.PastDeadline(now.Add(time.Minute)))
	assert.True(t, b.PastDeadline(now.Add(2*time.Minute)))
}
