package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ModelStatus
		allowed  bool
	}{
		{StatusTraining, StatusValidation, true},
		{StatusTraining, StatusFailed, true},
		{StatusTraining, StatusProduction, false},
		{StatusValidation, StatusStaging, true},
		{StatusValidation, StatusProduction, true},
		{StatusValidation, StatusFailed, true},
		{StatusStaging, StatusProduction, true},
		{StatusProduction, StatusDeprecated, true},
		{StatusProduction, StatusStaging, false},
		{StatusDeprecated, StatusProduction, true}, // rollback path
		{StatusFailed, StatusValidation, false},
		{StatusFailed, StatusProduction, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestDeployableStatuses(t *testing.T) {
	assert.True(t, StatusValidation.Deployable())
	assert.True(t, StatusStaging.Deployable())
	assert.False(t, StatusTraining.Deployable())
	assert.False(t, StatusProduction.Deployable())
	assert.False(t, StatusDeprecated.Deployable())
	assert.False(t, StatusFailed.Deployable())
}
