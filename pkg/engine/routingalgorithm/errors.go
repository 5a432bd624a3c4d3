package routingalgorithm

import (
	"errors"

	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
)

var (
	ErrNodeNotFound        = roadnetwork.ErrNodeNotFound
	ErrDifferentComponents = errors.New("start and end are in different road network components")
	ErrNoPath              = errors.New("no path between start and end")
	ErrSearchTimeout       = errors.New("route search timed out, try again")

	errCHBudget = errors.New("ch query exceeded its budget")
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNodeNotFound):
		return metrics.OutcomeNodeNotFound
	case errors.Is(err, ErrDifferentComponents):
		return metrics.OutcomeDifferentComponents
	case errors.Is(err, ErrSearchTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeNoPath
	}
}
