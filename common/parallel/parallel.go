// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parallel

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// Parallel runs worker for jobs [0, nJobs) on nWorkers goroutines. The first
// error by job order is returned. Pending jobs are skipped once ctx is done.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 || nJobs <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	c := make(chan int, nJobs)
	for i := 0; i < nJobs; i++ {
		c <- i
	}
	close(c)
	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for j := 0; j < min(nWorkers, nJobs); j++ {
		workerId := j
		wg.Go(func() {
			for jobId := range c {
				if err := ctx.Err(); err != nil {
					errs[jobId] = err
					return
				}
				if err := worker(workerId, jobId); err != nil {
					errs[jobId] = err
					return
				}
			}
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// For runs worker for jobs [0, nJobs) on nWorkers goroutines.
func For(nJobs, nWorkers int, worker func(int)) {
	_ = Parallel(context.Background(), nJobs, nWorkers, func(_, jobId int) error {
		worker(jobId)
		return nil
	})
}
