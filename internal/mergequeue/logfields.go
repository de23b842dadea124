package mergequeue

import (
	"github.com/simplesurance/automerge/internal/logfields"
)

var (
	logEventEnqueued      = logfields.Event("enqueued")
	logEventDequeued      = logfields.Event("dequeued")
	logEventClaimed       = logfields.Event("claimed")
	logEventReleased      = logfields.Event("claim_released")
	logEventUpdateSkipped = logfields.Event("update_skipped")

	logReasonPRClosed       = logfields.Reason("pull_request_closed")
	logReasonBaseChanged    = logfields.Reason("base_branch_changed")
	logReasonChecksFailed   = logfields.Reason("status_checks_failed")
	logReasonUpdateFailed   = logfields.Reason("update_failed")
	logReasonWaitingOnMerge = logfields.Reason("waiting_for_merge")
)
