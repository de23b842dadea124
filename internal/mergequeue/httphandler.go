package mergequeue

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type httpRespWriter struct {
	http.ResponseWriter
	logger *zap.Logger
}

// WriteStr writes a string to the http response write.
// If an error happens, it is logged with info priority and false is returned.
func (rw *httpRespWriter) WriteStr(str string) (wasSuccessful bool) {
	_, err := rw.ResponseWriter.Write([]byte(str))
	if err != nil {
		rw.logger.Info("sending http response failed", zap.Error(err))
		return false
	}

	return true
}

// HTTPHandlerList writes a plain text listing of all queues.
func (q *Queue) HTTPHandlerList(respWr http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	branches, err := q.store.Branches(ctx)
	if err != nil {
		q.logger.Info("retrieving branches for http listing failed", zap.Error(err))
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
		return
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Key() < branches[j].Key()
	})

	var result strings.Builder

	for _, branch := range branches {
		entries, err := q.store.Entries(ctx, branch)
		if err != nil {
			q.logger.Info("retrieving entries for http listing failed", zap.Error(err))
			http.Error(respWr, err.Error(), http.StatusInternalServerError)
			return
		}

		result.WriteString(fmt.Sprintf(
			"Base: %s/%s %s\n",
			branch.RepositoryOwner, branch.Repository, branch.Branch,
		))

		for i, e := range entries {
			state := "queued"
			if e.ActiveSince != nil {
				state = "active since " + e.ActiveSince.Format(time.RFC822)
			}

			result.WriteString(fmt.Sprintf(
				"\t#%-4d PR: %4d\tAdded: %s, \tSync: %s, \t%s\n",
				i, e.PullNumber, e.EnqueuedAt.Format(time.RFC822), e.SyncMethod, state,
			))
		}
	}

	resp := httpRespWriter{ResponseWriter: respWr, logger: q.logger}
	resp.Header().Add("Content-Type", "text/plain")

	if len(branches) == 0 {
		resp.WriteStr("no pull requests queued\n")
		return
	}

	resp.WriteStr(result.String())
}
