package quorum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestQuorum_SuccessIffResponsesGEQ_Required tests that a fan-out succeeds iff
// responses >= required
func TestQuorum_SuccessIffResponsesGEQ_Required(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		required      int
		successes     int
		shouldSucceed bool
	}{
		{"R=2, 2 responses, should succeed", 3, 2, 2, true},
		{"R=2, 1 response, should fail", 3, 2, 1, false},
		{"R=2, 3 responses, should succeed", 3, 2, 3, true},
		{"R=3, 2 responses, should fail", 3, 3, 2, false},
		{"R=3, 3 responses, should succeed", 3, 3, 3, true},
		{"R=1, 1 response, should succeed", 3, 1, 1, true},
		{"R=0, 0 responses, should succeed", 3, 0, 0, true},
		{"R=4, 3 responses, should fail", 3, 4, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replicas := make([]string, tt.total)
			index := make(map[string]int, tt.total)
			for i := 0; i < tt.total; i++ {
				replicas[i] = fmt.Sprintf("replica%d", i)
				index[replicas[i]] = i
			}

			fn := func(ctx context.Context, replica string) (struct{}, error) {
				if index[replica] < tt.successes {
					return struct{}{}, nil
				}
				return struct{}{}, errors.New("simulated failure")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			result := Do(ctx, replicas, tt.required, time.Second, fn)

			if result.Success != tt.shouldSucceed {
				t.Errorf("Expected success=%v, got %v (responses=%d, required=%d)",
					tt.shouldSucceed, result.Success, tt.successes, tt.required)
			}
			if result.Success && result.Responses < tt.required {
				t.Errorf("Success with %d responses below required %d", result.Responses, tt.required)
			}
			if result.Responses+len(result.Failed) != tt.total && tt.required <= tt.total {
				t.Errorf("Every replica must be accounted for: %d responses, %d failed, %d total",
					result.Responses, len(result.Failed), tt.total)
			}
		})
	}
}

// TestQuorum_CallsEveryReplica tests that all replicas are contacted
func TestQuorum_CallsEveryReplica(t *testing.T) {
	replicas := []string{"r1", "r2", "r3", "r4", "r5"}

	var mu sync.Mutex
	called := make(map[string]int)
	fn := func(ctx context.Context, replica string) (bool, error) {
		mu.Lock()
		called[replica]++
		mu.Unlock()
		return true, nil
	}

	result := Do(context.Background(), replicas, 3, time.Second, fn)

	if !result.Success {
		t.Error("Expected success")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, r := range replicas {
		if called[r] != 1 {
			t.Errorf("replica %s called %d times, want 1", r, called[r])
		}
	}
}

// TestQuorum_AllFailures tests that all failures result in failure
func TestQuorum_AllFailures(t *testing.T) {
	replicas := []string{"r1", "r2", "r3"}

	fn := func(ctx context.Context, replica string) (bool, error) {
		return false, errors.New("all replicas failed")
	}

	result := Do(context.Background(), replicas, 2, time.Second, fn)

	if result.Success {
		t.Error("Expected failure when all replicas fail")
	}
	if result.Err == nil {
		t.Error("Expected error for failed quorum")
	}
}
