package tx

import "context"

// Step is one unit of a saga: an action paired with the compensation that
// semantically undoes it. Compensate receives the value Execute produced.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) (interface{}, error)
	Compensate func(ctx context.Context, result interface{}) error
}

// RunSaga executes steps strictly in order. When step k fails, the
// compensations for steps k-1 .. 0 run in reverse order; a compensation
// failure is recorded and does not stop the remaining compensations.
// Rollback is best-effort, not atomic. The returned error is a *SagaError
// carrying the original cause and every compensation outcome.
func (m *Manager) RunSaga(ctx context.Context, steps []Step) ([]interface{}, error) {
	results := make([]interface{}, 0, len(steps))

	for i, step := range steps {
		result, err := step.Execute(ctx)
		if err == nil {
			results = append(results, result)
			continue
		}

		sagaErr := &SagaError{Step: step.Name, Cause: err}
		for j := i - 1; j >= 0; j-- {
			if steps[j].Compensate == nil {
				continue
			}

			compErr := steps[j].Compensate(ctx, results[j])
			sagaErr.Compensations = append(sagaErr.Compensations, CompensationOutcome{
				Step: steps[j].Name,
				Err:  compErr,
			})
			if compErr != nil && m.logger != nil {
				m.logger.Error("Saga compensation failed",
					"step", steps[j].Name,
					"error", compErr,
				)
			}
		}

		return nil, sagaErr
	}

	return results, nil
}
