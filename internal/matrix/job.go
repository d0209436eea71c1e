package matrix

import (
	"sync"
	"sync/atomic"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/bundle"
	"github.com/vk/shipgridgo/internal/cachekey"
	"github.com/vk/shipgridgo/internal/checksum"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/notary"
)

// Status is a build job's lifecycle state. The terminal status is set
// exactly once.
type Status int32

const (
	Pending Status = iota
	Running
	Succeeded
	Failed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// BuildJob is one platform's build, owned by its stage chain. Stages within
// a chain run sequentially, so the data fields need no locking; only the
// status is read across goroutines.
type BuildJob struct {
	ID        string
	Platform  *config.Platform
	Toolchain *config.Toolchain

	CacheKey cachekey.Key
	// CacheHit is the cache key that was actually restored, possibly a
	// less specific fallback; empty on a full miss.
	CacheHit string

	// Attempts is how many build attempts were made.
	Attempts int

	Binaries  artifact.Set
	Archives  []bundle.Archive
	Checksums []checksum.Record
	// Verdict is the notarization outcome, macOS tag builds only.
	Verdict *notary.Verdict

	// Err is the failure that terminated the job, if any.
	Err error

	status   atomic.Int32
	terminal sync.Once
}

// Status atomically reads the job's current status.
func (j *BuildJob) Status() Status {
	return Status(j.status.Load())
}

func (j *BuildJob) setRunning() {
	if j.Status() == Pending {
		j.status.Store(int32(Running))
	}
}

// finish sets the terminal status exactly once; later calls are ignored.
func (j *BuildJob) finish(s Status, err error) {
	j.terminal.Do(func() {
		j.Err = err
		j.status.Store(int32(s))
	})
}
