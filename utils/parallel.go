// Package utils contains helpers shared by the capture pipeline packages.
package utils

import (
	"context"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor is the number of groups per-pixel work is split into. Tests may lower it.
var ParallelFactor = parallelFactor(runtime.GOMAXPROCS(0))

func parallelFactor(procs int) int {
	switch {
	case procs <= 0:
		return 1
	case procs > 32:
		return procs / 4
	}
	return procs
}

// cancelCheckEvery is the number of items processed between two context checks.
const cancelCheckEvery = 4096

type (
	// BeforeParallelGroupWorkFunc receives the number of groups before any work starts.
	BeforeParallelGroupWorkFunc func(numGroups int)
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc returns the work of the members of a group covering [from, to).
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// groupRange returns the items of group g among n groups over total items. The last group
// takes the remainder.
func groupRange(g, n, total int) (from, to int) {
	size := total / n
	from = g * size
	to = from + size
	if g == n-1 {
		to = total
	}
	return from, to
}

// GroupWorkParallel splits totalSize items over ParallelFactor goroutines. It returns the
// context error when the work was interrupted.
func GroupWorkParallel(ctx context.Context, totalSize int, before BeforeParallelGroupWorkFunc, groupWork GroupWorkFunc) error {
	numGroups := ParallelFactor
	if totalSize < numGroups {
		numGroups = 1
	}
	if before != nil {
		before(numGroups)
	}

	var wg sync.WaitGroup
	wg.Add(numGroups)
	for g := 0; g < numGroups; g++ {
		g := g
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			from, to := groupRange(g, numGroups, totalSize)
			memberWork, done := groupWork(g, to-from, from, to)
			if memberWork != nil {
				for workNum := from; workNum < to; workNum++ {
					if (workNum-from)%cancelCheckEvery == 0 && ctx.Err() != nil {
						return
					}
					memberWork(workNum-from, workNum)
				}
			}
			if done != nil {
				done()
			}
		})
	}
	wg.Wait()
	return ctx.Err()
}

// ParallelForEachIndex calls f for every index in [0, size) spread over ParallelFactor workers.
// f must only write to state owned by its index.
func ParallelForEachIndex(size int, f func(idx int)) {
	//nolint:errcheck
	GroupWorkParallel(context.Background(), size, nil, func(_, _, _, _ int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(_, workNum int) { f(workNum) }, nil
	})
}
