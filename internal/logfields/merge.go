package logfields

import "go.uber.org/zap"

func MergeMethod(val string) zap.Field {
	return zap.String("merge.method", val)
}

func SyncMethod(val string) zap.Field {
	return zap.String("merge.sync_method", val)
}

func Strict(val string) zap.Field {
	return zap.String("merge.strict", val)
}

func OutcomeStatus(val string) zap.Field {
	return zap.String("merge.outcome_status", val)
}

func HTTPStatusCode(val int) zap.Field {
	return zap.Int("http_status_code", val)
}
