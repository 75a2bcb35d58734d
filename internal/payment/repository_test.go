package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordedStatus(s ResultStatus) *string {
	v := string(s)
	return &v
}

func TestIsDuplicateDelivery(t *testing.T) {
	tests := []struct {
		name     string
		recorded *string
		reported ResultStatus
		want     bool
	}{
		{"no_prior_record", nil, ResultSuccess, false},
		{"repeated_success", recordedStatus(ResultSuccess), ResultSuccess, true},
		{"repeated_failure", recordedStatus(ResultFailure), ResultFailure, true},
		{"repeated_processing", recordedStatus(ResultProcessing), ResultProcessing, true},
		{"processing_then_success", recordedStatus(ResultProcessing), ResultSuccess, false},
		{"processing_then_failure", recordedStatus(ResultProcessing), ResultFailure, false},
		{"failure_then_success", recordedStatus(ResultFailure), ResultSuccess, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicateDelivery(tt.recorded, tt.reported))
		})
	}
}
