package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/personaflow/pkg/personaflow/workflow"
)

// TestResultErr tests that a failed run surfaces as a command error,
// leaving cleanup to the usual defer path, while a completed run
// returns nil.
func TestResultErr(t *testing.T) {
	assert.NoError(t, resultErr(&workflow.Result{Status: workflow.StatusCompleted}))

	err := resultErr(&workflow.Result{Status: workflow.StatusFailed, ErrKind: workflow.KindTransient})
	assert.ErrorContains(t, err, "failed")
	assert.ErrorContains(t, err, workflow.KindTransient)
}
