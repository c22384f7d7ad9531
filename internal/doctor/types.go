package doctor

import (
	"context"
)

type Category string

const (
	CategoryConfig   Category = "config"
	CategoryWallet   Category = "wallet"
	CategoryChain    Category = "chain"
	CategoryServices Category = "services"
	CategorySystem   Category = "system"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// CheckResult is the outcome of one check. FixCommand is shown for
// warnings and errors.
type CheckResult struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Status     Status   `json:"status"`
	Message    string   `json:"message"`
	Details    string   `json:"details,omitempty"`
	FixCommand string   `json:"fix_command,omitempty"`
}

// Checker is one diagnostic. Check must honor ctx and never panic on a
// missing dependency; it reports StatusSkipped instead.
type Checker interface {
	Name() string
	Category() Category
	Check(ctx context.Context) CheckResult
}

type Options struct {
	JSON     bool
	Category Category // empty runs every category
}

type Report struct {
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Warned  int `json:"warned"`
	Skipped int `json:"skipped"`
}

func (s *Summary) add(st Status) {
	s.Total++
	switch st {
	case StatusOK:
		s.Passed++
	case StatusError:
		s.Failed++
	case StatusWarning:
		s.Warned++
	case StatusSkipped:
		s.Skipped++
	}
}

// IsHealthy reports whether no check failed. Warnings do not count.
func (s Summary) IsHealthy() bool {
	return s.Failed == 0
}
