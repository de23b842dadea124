package merge

// Status is the disposition of a merge action execution.
type Status string

const (
	// StatusNone means that no final result exists yet, the action
	// is evaluated again on the next trigger.
	StatusNone           Status = "none"
	StatusSuccess        Status = "success"
	StatusActionRequired Status = "action_required"
	StatusFailure        Status = "failure"
	StatusCancelled      Status = "cancelled"
)

// Outcome is the result of a merge action execution.
type Outcome struct {
	Status  Status
	Summary string
	Detail  string
}

// IsTerminal returns true if the outcome is final for the pull request.
func (o *Outcome) IsTerminal() bool {
	return o.Status != StatusNone
}

func newOutcome(status Status, summary, detail string) Outcome {
	return Outcome{Status: status, Summary: summary, Detail: detail}
}

var cancelledOutcome = Outcome{
	Status:  StatusCancelled,
	Summary: "The rule doesn't match anymore",
	Detail:  "This action has been cancelled.",
}

var waitForCIOutcome = Outcome{
	Status:  StatusNone,
	Summary: "Waiting for status checks",
	Detail:  "The pull request will be merged when the required status checks succeed.",
}
