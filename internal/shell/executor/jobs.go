package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shell/parser"
)

// Job statuses.
const (
	jobRunning = "running"
	jobDone    = "done"
)

type job struct {
	id      int
	line    string
	user    string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	status string
	msgs   []string
	result types.Result
}

// jobTable tracks one session's background jobs. Pids are sequential per
// session, starting at 1.
type jobTable struct {
	mu     sync.Mutex
	nextID int
	jobs   map[int]*job
}

type jobIDKey struct{}

// table returns (creating if needed) the session's job table.
func (e *Executor) table(sess *session.Session) *jobTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[sess.ID()]
	if !ok {
		t = &jobTable{nextID: 1, jobs: make(map[int]*job)}
		e.tables[sess.ID()] = t
	}
	return t
}

// DropJobs cancels and forgets a session's jobs, called when the session
// closes.
func (e *Executor) DropJobs(sess *session.Session) {
	e.mu.Lock()
	t, ok := e.tables[sess.ID()]
	delete(e.tables, sess.ID())
	e.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		j.cancel()
	}
}

// startJob runs a statement in the background and returns its pid. The job
// runs on its own goroutine; completion is observed through jobs/fg.
func (e *Executor) startJob(ctx context.Context, st *runState, stmt *parser.Statement, line string) int {
	t := e.table(st.sess)
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	t.mu.Lock()
	j := &job{
		id:      t.nextID,
		line:    strings.TrimSpace(line),
		user:    st.sess.User(),
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		status:  jobRunning,
	}
	t.nextID++
	t.jobs[j.id] = j
	active := countRunning(t)
	t.mu.Unlock()
	if e.obs != nil {
		e.obs.JobsChanged(active)
	}

	go func() {
		defer cancel()
		jobCtx = context.WithValue(jobCtx, jobIDKey{}, j.id)
		steps := 0
		jobState := &runState{
			sess:       st.sess,
			prompter:   nil, // background jobs cannot prompt
			depth:      st.depth,
			steps:      &steps,
			scriptArgs: st.scriptArgs,
		}
		res := e.runStatement(jobCtx, jobState, stmt)
		if jobCtx.Err() != nil {
			res = types.FailErr(types.NewError(types.KindAborted, "[%d] terminated", j.id))
		}
		j.mu.Lock()
		j.status = jobDone
		j.result = res
		j.mu.Unlock()
		close(j.done)

		t.mu.Lock()
		active := countRunning(t)
		t.mu.Unlock()
		if e.obs != nil {
			e.obs.JobsChanged(active)
		}
		e.log.Debug("job finished",
			zap.Int("job", j.id),
			zap.Bool("success", res.Success),
			zap.String("user", j.user))
	}()
	return j.id
}

func countRunning(t *jobTable) int {
	n := 0
	for _, j := range t.jobs {
		j.mu.Lock()
		if j.status == jobRunning {
			n++
		}
		j.mu.Unlock()
	}
	return n
}

func jobStartedLine(id int) string {
	return fmt.Sprintf("[%d] started", id)
}

// jobControl adapts a session's job table to the command contract.
type jobControl struct {
	e    *Executor
	sess *session.Session
}

func (jc *jobControl) List() []command.JobInfo {
	t := jc.e.table(jc.sess)
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]command.JobInfo, 0, len(t.jobs))
	for _, j := range t.jobs {
		j.mu.Lock()
		infos = append(infos, command.JobInfo{
			ID:      j.id,
			Line:    j.line,
			Status:  j.status,
			User:    j.user,
			Started: j.started.UTC().Format(time.RFC3339),
		})
		j.mu.Unlock()
	}
	sortJobs(infos)
	return infos
}

func sortJobs(infos []command.JobInfo) {
	for i := 1; i < len(infos); i++ {
		for k := i; k > 0 && infos[k].ID < infos[k-1].ID; k-- {
			infos[k], infos[k-1] = infos[k-1], infos[k]
		}
	}
}

// Resume waits for a job in the foreground (fg) or reports it running in
// the background (bg). Finished jobs hand back their output and are
// reaped.
func (jc *jobControl) Resume(ctx context.Context, id int, foreground bool) (string, error) {
	t := jc.e.table(jc.sess)
	t.mu.Lock()
	j, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return "", jobNotFound(id)
	}
	if !foreground {
		j.mu.Lock()
		status := j.status
		j.mu.Unlock()
		return fmt.Sprintf("[%d] %s  %s", id, status, j.line), nil
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		return "", types.NewError(types.KindAborted, "fg: aborted while waiting for job %d", id)
	}
	j.mu.Lock()
	res := j.result
	j.mu.Unlock()
	t.mu.Lock()
	delete(t.jobs, id)
	t.mu.Unlock()
	if !res.Success {
		msg := fmt.Sprintf("job %d failed", id)
		if res.Error != nil {
			msg = res.Error.Message
		}
		return res.Output, types.NewError(types.KindAborted, "%s", msg)
	}
	return res.Output, nil
}

// Kill cancels a running job (TERM). The job transitions to done at its
// next cooperative checkpoint.
func (jc *jobControl) Kill(id int) error {
	t := jc.e.table(jc.sess)
	t.mu.Lock()
	j, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return jobNotFound(id)
	}
	j.cancel()
	return nil
}

// Post queues a message onto a job's queue.
func (jc *jobControl) Post(id int, message string) error {
	t := jc.e.table(jc.sess)
	t.mu.Lock()
	j, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return jobNotFound(id)
	}
	j.mu.Lock()
	j.msgs = append(j.msgs, message)
	j.mu.Unlock()
	return nil
}

// Messages drains the calling job's queue, in insertion order.
func (jc *jobControl) Messages(ctx context.Context) []string {
	id, ok := ctx.Value(jobIDKey{}).(int)
	if !ok {
		return nil
	}
	t := jc.e.table(jc.sess)
	t.mu.Lock()
	j, found := t.jobs[id]
	t.mu.Unlock()
	if !found {
		return nil
	}
	j.mu.Lock()
	msgs := j.msgs
	j.msgs = nil
	j.mu.Unlock()
	return msgs
}

func jobNotFound(id int) error {
	return types.NewError(types.KindJobNotFound, "no such job: %d", id)
}
