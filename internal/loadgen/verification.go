package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/merit/internal/domain/types"
)

// verify compares each user's active-season points with the expected sum.
// It returns the number of users that matched.
func verify(ctx context.Context, client *Client, workers int, expected map[string]int64, doubles []string) (int, error) {
	var (
		mu       sync.Mutex
		problems []error
		matched  int
	)
	for _, key := range doubles {
		problems = append(problems, fmt.Errorf("source key %s applied more than once", key))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for userID, want := range expected {
		g.Go(func() error {
			var got types.Points
			err := client.Points(gctx, userID, &got)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				problems = append(problems, fmt.Errorf("user %s: %w", userID, err))
			case got.Points != want:
				problems = append(problems, fmt.Errorf("user %s: season points %d, applied awards sum to %d", userID, got.Points, want))
			default:
				matched++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(problems) > 0 {
		return matched, errors.Join(append([]error{ErrVerification}, problems...)...)
	}
	return matched, nil
}
