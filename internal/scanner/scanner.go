// Package scanner audits a single network: fetch its clients, classify them
// against the denylist, and optionally block the matches. A scan never
// raises past its own network; failures come back as data on the result.
package scanner

import (
	"context"
	"time"

	"github.com/HerbHall/fleetaudit/internal/classify"
	"github.com/HerbHall/fleetaudit/internal/denylist"
	"github.com/HerbHall/fleetaudit/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Directory is the slice of the directory client a scan needs.
type Directory interface {
	ListClients(ctx context.Context, networkID string, lookback time.Duration) ([]models.Client, error)
	UpdateClientPolicy(ctx context.Context, networkID, clientID, policy string) (*models.ClientPolicy, error)
}

// blockPolicy is the device policy applied to matched clients.
const blockPolicy = "Blocked"

// Scanner runs the classify-and-remediate pass for one network at a time.
// One Scanner is shared by all fleet workers; it holds no per-scan state.
type Scanner struct {
	dir    Directory
	rules  *denylist.Rules
	vendor classify.VendorLookup
	logger *zap.Logger

	// Lookback bounds how far back the client listing reaches.
	Lookback time.Duration
	// BlockWorkers bounds concurrent policy updates within one network.
	BlockWorkers int
}

// New creates a Scanner. vendor may be nil to skip vendor-table lookups.
func New(dir Directory, rules *denylist.Rules, vendor classify.VendorLookup, logger *zap.Logger) *Scanner {
	return &Scanner{
		dir:          dir,
		rules:        rules,
		vendor:       vendor,
		logger:       logger,
		Lookback:     30 * 24 * time.Hour,
		BlockWorkers: 8,
	}
}

// Scan fetches and classifies every client on the network. When block is
// set, matched clients are blocked concurrently; a failed block is recorded
// on the match and never fails the scan. A listing failure is returned as
// NetworkResult{OK: false} with the error preserved for the report.
func (s *Scanner) Scan(ctx context.Context, network models.Network, block bool) models.NetworkResult {
	clients, err := s.dir.ListClients(ctx, network.ID, s.Lookback)
	if err != nil {
		s.logger.Warn("client listing failed",
			zap.String("network", network.Name),
			zap.String("network_id", network.ID),
			zap.Error(err))
		return models.NetworkResult{Network: network, OK: false, Err: err.Error()}
	}

	s.logger.Info("scanning network",
		zap.String("network", network.Name),
		zap.Int("clients", len(clients)))

	var matches []models.MatchedClient
	for _, client := range clients {
		verdict := classify.Classify(client, s.rules, s.vendor)
		if !verdict.Bad {
			continue
		}
		matches = append(matches, models.MatchedClient{
			Client:       client,
			MatchedRule:  verdict.Rule,
			UsageDisplay: client.Usage.Display(),
			Blocked:      models.BlockNotAttempted,
		})
	}

	if len(matches) > 0 {
		s.logger.Info("found bad clients",
			zap.String("network", network.Name),
			zap.Int("matches", len(matches)))
		if block {
			s.blockAll(ctx, network, matches)
		}
	}

	return models.NetworkResult{Network: network, OK: true, Matches: matches}
}

// blockAll applies the block policy to every match concurrently, bounded by
// BlockWorkers. Outcomes are written back onto the matches in place; each
// goroutine owns exactly one element.
func (s *Scanner) blockAll(ctx context.Context, network models.Network, matches []models.MatchedClient) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.BlockWorkers)

	for i := range matches {
		m := &matches[i]
		g.Go(func() error {
			result, err := s.dir.UpdateClientPolicy(ctx, network.ID, m.ID, blockPolicy)
			switch {
			case err != nil:
				m.Blocked = models.BlockFailed
				m.BlockDetail = err.Error()
				s.logger.Warn("failed to block client",
					zap.String("network", network.Name),
					zap.String("client", m.ID),
					zap.Error(err))
			case result.DevicePolicy != blockPolicy:
				m.Blocked = models.BlockFailed
				m.BlockDetail = "service reported policy " + result.DevicePolicy
				s.logger.Warn("block not applied",
					zap.String("network", network.Name),
					zap.String("client", m.ID),
					zap.String("policy", result.DevicePolicy))
			default:
				m.Blocked = models.BlockSucceeded
				s.logger.Info("blocked client",
					zap.String("network", network.Name),
					zap.String("client", m.ID),
					zap.String("mac", m.MAC))
			}
			return nil
		})
	}

	// Workers never return errors; failures are recorded per client.
	_ = g.Wait()
}
