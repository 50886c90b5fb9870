// Package policy implements the three per-session policies the Execution
// Kernel consults before mutating files: contract-freeze, runtime-artifact
// path validation, and read-budget enforcement.
package policy

import (
	"strings"
	"sync"

	"github.com/conductor-run/orchestrator/internal/models"
)

// ContractPolicy gates writes against a session's frozen path prefixes once
// the contract-freeze phase has run. It is safe for concurrent use.
type ContractPolicy struct {
	mu    sync.RWMutex
	state models.SessionContractPolicy
}

// NewContractPolicy returns a policy that allows all writes until Freeze is
// called.
func NewContractPolicy() *ContractPolicy {
	return &ContractPolicy{}
}

// Freeze sets readOnly=true with the given frozen prefixes, defaulting to
// models.DefaultFrozenPrefixes when none are supplied.
func (p *ContractPolicy) Freeze(prefixes []string) {
	if len(prefixes) == 0 {
		prefixes = models.DefaultFrozenPrefixes()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = models.SessionContractPolicy{ReadOnly: true, FrozenPrefixes: prefixes}
}

// CheckWrite evaluates a normalized write target against the frozen
// prefixes. A non-nil error's message is CONTRACT_FROZEN_WRITE_BLOCKED.
func (p *ContractPolicy) CheckWrite(normalizedPath string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.state.ReadOnly {
		return nil
	}
	for _, prefix := range p.state.FrozenPrefixes {
		if strings.HasPrefix(normalizedPath, prefix) {
			return errContractFrozenWriteBlocked
		}
	}
	return nil
}

type policyErr string

func (e policyErr) Error() string { return string(e) }

const errContractFrozenWriteBlocked = policyErr("CONTRACT_FROZEN_WRITE_BLOCKED")
