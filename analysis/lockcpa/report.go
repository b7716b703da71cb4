package lockcpa

import (
	"sort"

	"github.com/lokeshkvn/cpachecker/analysis/cpa"
	"github.com/lokeshkvn/cpachecker/analysis/lock"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
)

// Report logs the outcome of an analysis run: the number of reached
// abstract states, the lock states possible at function exit, and a
// warning for every lock that may still be held when the function returns.
func (a *Analysis) Report(fn *ssa.Function, reached *cpa.ReachedSet) {
	g := a.Builder.ForFunction(fn)

	log.WithFields(log.Fields{
		"function": fn.String(),
		"states":   reached.Len(),
	}).Info("analysis reached fixpoint")

	exitStates := reached.StatesAt(g.Exit())
	if len(exitStates) == 0 {
		log.Warnf("%s never returns on any analyzed path", fn)
		return
	}

	for _, exitState := range exitStates {
		ls := exitState.(State).LockState()
		log.Infof("exit state: %s", ls)

		ls.ForEach(func(id lock.ID, count int) {
			log.WithFields(log.Fields{
				"function": fn.String(),
				"lock":     id.String(),
				"count":    count,
			}).Warn("lock may still be held at function exit")
		})
	}
}

// ReportMetrics logs static lock metrics for a function: the number of
// classified lock operation sites and the locks used transitively.
func (a *Analysis) ReportMetrics(fn *ssa.Function) {
	g := a.Builder.ForFunction(fn)
	used := a.Summaries.UsedLocks(fn)

	ids := make([]lock.ID, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Cmp(ids[j]) < 0
	})

	log.WithFields(log.Fields{
		"function":   fn.String(),
		"operations": g.LockOperations(),
		"locks":      len(ids),
	}).Info("lock metrics")

	for _, id := range ids {
		log.Infof("  uses lock %s", id)
	}
}
