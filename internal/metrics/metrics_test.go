package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/redtrack-io/redtrack/internal/core"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "conflict", Outcome(fmt.Errorf("save: %w", core.ErrConcurrentModification)))
	assert.Equal(t, "denied", Outcome(&core.AuthorizationError{UserID: 1, ProjectID: 2, Permission: "view_issues"}))
	assert.Equal(t, "rejected", Outcome(core.ErrCyclicDependency))
	assert.Equal(t, "not_found", Outcome(core.ErrNotFound))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(PermissionChecks.WithLabelValues("granted"))
	PermissionChecks.WithLabelValues("granted").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PermissionChecks.WithLabelValues("granted")))
}
