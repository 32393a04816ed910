package resolver

import (
	"errors"
	"testing"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
)

var fastBackoff = wait.Backoff{Steps: 2, Duration: time.Millisecond, Factor: 1}

// findError is errors.As that also looks inside aggregates.
func findError[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if errors.As(err, &target) {
		return target
	}
	var agg utilerrors.Aggregate
	if errors.As(err, &agg) {
		for _, e := range utilerrors.Flatten(agg).Errors() {
			if errors.As(e, &target) {
				return target
			}
		}
	}
	t.Fatalf("error %v does not contain %T", err, target)
	return target
}
