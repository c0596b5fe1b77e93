package ports

import "context"

// Black-box trained policy: maps an observation vector to a discrete action.
type DecisionModel interface {
	Predict(ctx context.Context, observation []float32) (int, error)
}
