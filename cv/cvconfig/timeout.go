package cvconfig

import (
	"time"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// TimeoutConfig provides consensus step timeouts that increase linearly with the round.
// Any zero field is replaced by its default when calculating a timeout.
type TimeoutConfig struct {
	Propose      time.Duration
	ProposeDelta time.Duration

	Prevote      time.Duration
	PrevoteDelta time.Duration

	Precommit      time.Duration
	PrecommitDelta time.Duration

	// How long to wait after committing before moving to the next height.
	Commit time.Duration
}

const (
	defaultProposeTimeout   = 3 * time.Second
	defaultPrevoteTimeout   = 1 * time.Second
	defaultPrecommitTimeout = 1 * time.Second
	defaultTimeoutDelta     = 500 * time.Millisecond
	defaultCommitTimeout    = 0
)

// DefaultTimeoutConfig returns a TimeoutConfig with every field set to its default.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Propose:      defaultProposeTimeout,
		ProposeDelta: defaultTimeoutDelta,

		Prevote:      defaultPrevoteTimeout,
		PrevoteDelta: defaultTimeoutDelta,

		Precommit:      defaultPrecommitTimeout,
		PrecommitDelta: defaultTimeoutDelta,

		Commit: defaultCommitTimeout,
	}
}

func linear(base, defBase, delta time.Duration, r cvconsensus.Round) time.Duration {
	if base == 0 {
		base = defBase
	}
	if delta == 0 {
		delta = defaultTimeoutDelta
	}
	return base + time.Duration(r)*delta
}

func (c TimeoutConfig) ProposeTimeout(r cvconsensus.Round) time.Duration {
	return linear(c.Propose, defaultProposeTimeout, c.ProposeDelta, r)
}

func (c TimeoutConfig) PrevoteTimeout(r cvconsensus.Round) time.Duration {
	return linear(c.Prevote, defaultPrevoteTimeout, c.PrevoteDelta, r)
}

func (c TimeoutConfig) PrecommitTimeout(r cvconsensus.Round) time.Duration {
	return linear(c.Precommit, defaultPrecommitTimeout, c.PrecommitDelta, r)
}

// CommitTimeout does not vary by round.
func (c TimeoutConfig) CommitTimeout() time.Duration {
	return c.Commit
}
