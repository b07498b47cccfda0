// Package fleet fans the network scanner out across every network in an
// organization. One failing network never aborts the batch; only failure to
// resolve the organization or enumerate its networks is fatal.
package fleet

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/HerbHall/fleetaudit/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Directory is the slice of the directory client the orchestrator needs.
type Directory interface {
	GetOrganization(ctx context.Context, orgID string) (*models.Organization, error)
	ListNetworks(ctx context.Context, orgID string) ([]models.Network, error)
}

// NetworkScanner audits one network and reports the outcome as data.
type NetworkScanner interface {
	Scan(ctx context.Context, network models.Network, block bool) models.NetworkResult
}

// Audit is the complete outcome of one fleet run. Results are indexed in
// network enumeration order, not completion order.
type Audit struct {
	Org      models.Organization
	Networks []models.Network
	Results  []models.NetworkResult
}

// Orchestrator coordinates the concurrent scan of a whole organization.
type Orchestrator struct {
	dir     Directory
	scanner NetworkScanner
	logger  *zap.Logger

	// Workers bounds concurrent network scans.
	Workers int
	// Block enables remediation of matched clients.
	Block bool
}

// New creates an Orchestrator with the default worker bound (a small
// multiple of the available CPUs, matching the remote service's tolerance
// for parallel listing calls).
func New(dir Directory, scanner NetworkScanner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		dir:     dir,
		scanner: scanner,
		logger:  logger,
		Workers: runtime.NumCPU() * 4,
	}
}

// Run resolves the organization, enumerates its networks, and scans them
// all concurrently. Every network produces exactly one result in the
// returned Audit, ok or not. An error is returned only when there is
// nothing to fan out over.
func (o *Orchestrator) Run(ctx context.Context, orgID string) (*Audit, error) {
	org, err := o.dir.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve organization: %w", err)
	}
	o.logger.Info("analyzing organization", zap.String("org", org.Name), zap.String("org_id", org.ID))

	networks, err := o.dir.ListNetworks(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("enumerate networks: %w", err)
	}
	if len(networks) == 0 {
		return nil, fmt.Errorf("organization %q has no networks", org.Name)
	}
	o.logger.Info("found networks", zap.String("org", org.Name), zap.Int("count", len(networks)))

	// Fan out one scan per network, bounded. Each worker owns one slot of
	// the results slice, keyed by enumeration position, so the final order
	// is deterministic no matter when scans complete.
	results := make([]models.NetworkResult, len(networks))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i, network := range networks {
		i, network := i, network
		g.Go(func() error {
			results[i] = o.scanner.Scan(gctx, network, o.Block)
			o.logger.Info("finished network",
				zap.String("network", network.Name),
				zap.Int32("completed", done.Add(1)),
				zap.Int("total", len(networks)))
			return nil
		})
	}
	// Scan never returns an error; scan failures ride inside the results.
	_ = g.Wait()

	return &Audit{Org: *org, Networks: networks, Results: results}, nil
}

// FailedCount returns how many networks could not be scanned.
func (a *Audit) FailedCount() int {
	n := 0
	for _, r := range a.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// MatchCount returns the total matched clients across all networks.
func (a *Audit) MatchCount() int {
	n := 0
	for _, r := range a.Results {
		n += len(r.Matches)
	}
	return n
}

// BlockedCount returns how many matched clients were successfully blocked.
func (a *Audit) BlockedCount() int {
	n := 0
	for _, r := range a.Results {
		for _, m := range r.Matches {
			if m.Blocked == models.BlockSucceeded {
				n++
			}
		}
	}
	return n
}
