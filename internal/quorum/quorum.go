package quorum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPerReplicaTimeout is the default timeout for each replica RPC.
	DefaultPerReplicaTimeout = 2 * time.Second
)

// ErrNotMet is returned when fewer replicas answered than required.
var ErrNotMet = errors.New("quorum not met")

// Response is one replica's successful answer.
type Response[T any] struct {
	Replica string
	Value   T
}

// Result represents the outcome of a fan-out.
type Result[T any] struct {
	Success   bool
	Responses int
	Required  int
	Replicas  int
	// Values holds successful answers in replica order.
	Values []Response[T]
	// Failed maps replica to the error it returned.
	Failed map[string]error
	// Err is set when Success is false.
	Err error
}

// ReplicaFunc performs the request against a single replica.
type ReplicaFunc[T any] func(ctx context.Context, replica string) (T, error)

// Do calls fn for every replica in parallel and waits for all of them.
// It succeeds when at least required replicas answered without error; a
// required of zero or less never fails on missing answers. Each call is
// bounded by timeout (DefaultPerReplicaTimeout when non-positive).
func Do[T any](ctx context.Context, replicas []string, required int, timeout time.Duration, fn ReplicaFunc[T]) Result[T] {
	if required < 0 {
		required = 0
	}
	result := Result[T]{
		Required: required,
		Replicas: len(replicas),
		Failed:   make(map[string]error),
	}

	if required > len(replicas) {
		result.Err = fmt.Errorf("%w: required=%d exceeds replica count=%d", ErrNotMet, required, len(replicas))
		return result
	}
	if timeout <= 0 {
		timeout = DefaultPerReplicaTimeout
	}

	replicaCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	answers := make([]*Response[T], len(replicas))
	g := new(errgroup.Group)
	for i, replica := range replicas {
		i, replica := i, replica
		g.Go(func() error {
			value, err := fn(replicaCtx, replica)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[replica] = err
				return nil
			}
			answers[i] = &Response[T]{Replica: replica, Value: value}
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range answers {
		if a != nil {
			result.Values = append(result.Values, *a)
		}
	}
	result.Responses = len(result.Values)

	if err := ctx.Err(); err != nil {
		result.Err = fmt.Errorf("context cancelled: %w", err)
		return result
	}
	if result.Responses < required {
		result.Err = fmt.Errorf("%w: responses=%d required=%d replicas=%d%s",
			ErrNotMet, result.Responses, required, len(replicas), describe(result.Failed))
		return result
	}

	result.Success = true
	return result
}

// describe lists up to three replica failures for error messages.
func describe(failed map[string]error) string {
	if len(failed) == 0 {
		return ""
	}
	out := " errors=["
	n := 0
	for replica, err := range failed {
		if n == 3 {
			out += " ..."
			break
		}
		if n > 0 {
			out += "; "
		}
		out += replica + ": " + err.Error()
		n++
	}
	return out + "]"
}
