package workflow

import (
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/peacock/internal/activity"
)

// registerActivities registers the activity structs with the test workflow
// environment so parameter and result types can be decoded. All activities
// are mocked with OnActivity.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Provision{})
	env.RegisterActivity(&activity.Orchestrator{})
	env.RegisterActivity(&activity.Callback{})
}
