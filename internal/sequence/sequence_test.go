package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIssues_Empty(t *testing.T) {
	assert.Nil(t, DetectIssues(nil))
}

func TestDetectIssues_NoIssues(t *testing.T) {
	assert.Empty(t, DetectIssues([]int{1, 2, 3, 4}))
}

func TestDetectIssues_Missing(t *testing.T) {
	issues := DetectIssues([]int{1, 2, 4, 5})
	assert.Contains(t, issues, "number 3 is missing")
}

func TestDetectIssues_Repeated(t *testing.T) {
	issues := DetectIssues([]int{1, 2, 2, 3})
	assert.Contains(t, issues, "number 2 is repeated 1 time after number 1")
}

func TestDetectIssues_RepeatedMultipleTimes(t *testing.T) {
	issues := DetectIssues([]int{1, 2, 2, 2, 3})
	assert.Contains(t, issues, "number 2 is repeated 2 times after number 1")
}

func TestDetectIssues_Switched(t *testing.T) {
	issues := DetectIssues([]int{1, 3, 2, 4})
	assert.Contains(t, issues, "number 2 is switched in place with number 3")
	assert.Contains(t, issues, "number 3 is switched in place with number 2")
}

func TestDetectIssues_OutOfPlace(t *testing.T) {
	issues := DetectIssues([]int{1, 2, 5, 3, 6})
	found := false
	for _, m := range issues {
		if m == "number 3 is out of place after number 5" {
			found = true
		}
	}
	assert.True(t, found, "expected out-of-place message, got %v", issues)
}
