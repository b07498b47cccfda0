package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/fleetaudit/internal/denylist"
	"github.com/HerbHall/fleetaudit/internal/testutil"
	"github.com/HerbHall/fleetaudit/pkg/models"
	"go.uber.org/zap"
)

// fakeDirectory implements Directory with canned responses.
type fakeDirectory struct {
	mu       sync.Mutex
	clients  map[string][]models.Client
	listErr  error
	blockErr error
	blocked  []string
	// failPolicy makes UpdateClientPolicy succeed but report a different policy.
	failPolicy bool
}

func (f *fakeDirectory) ListClients(_ context.Context, networkID string, _ time.Duration) ([]models.Client, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.clients[networkID], nil
}

func (f *fakeDirectory) UpdateClientPolicy(_ context.Context, _ string, clientID, policy string) (*models.ClientPolicy, error) {
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	f.mu.Lock()
	f.blocked = append(f.blocked, clientID)
	f.mu.Unlock()
	if f.failPolicy {
		return &models.ClientPolicy{DevicePolicy: "Normal"}, nil
	}
	return &models.ClientPolicy{DevicePolicy: policy}, nil
}

func testRules() *denylist.Rules {
	return &denylist.Rules{
		MACPrefixes: []string{"AA:BB:CC"},
		Companies:   []string{"BadCo"},
	}
}

func testNetwork() models.Network {
	return models.Network{ID: "n1", Name: "Branch One"}
}

func TestScan_RetainsOnlyMatches(t *testing.T) {
	dir := &fakeDirectory{clients: map[string][]models.Client{
		"n1": {
			{ID: "c1", MAC: "AA:BB:CC:00:00:01"},
			{ID: "c2", MAC: "11:22:33:00:00:01", Manufacturer: "Honest Hardware"},
			{ID: "c3", MAC: "11:22:33:00:00:02", Manufacturer: "Shenzhen BadCo Ltd"},
		},
	}}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), false)
	if !result.OK {
		t.Fatalf("OK = false, err = %q", result.Err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(result.Matches))
	}
	if result.Matches[0].ID != "c1" || result.Matches[1].ID != "c3" {
		t.Errorf("matched IDs = %q, %q; want c1, c3", result.Matches[0].ID, result.Matches[1].ID)
	}
	for _, m := range result.Matches {
		if m.Blocked != models.BlockNotAttempted {
			t.Errorf("client %s: Blocked = %q, want %q", m.ID, m.Blocked, models.BlockNotAttempted)
		}
	}
}

func TestScan_UsageReformatted(t *testing.T) {
	dir := &fakeDirectory{clients: map[string][]models.Client{
		"n1": {testutil.NewClient(
			testutil.WithMAC("AA:BB:CC:00:00:01"),
			testutil.WithUsage(120.5, 88),
		)},
	}}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), false)
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(result.Matches))
	}
	if got := result.Matches[0].UsageDisplay; got != "sent=120.5 recv=88" {
		t.Errorf("UsageDisplay = %q, want %q", got, "sent=120.5 recv=88")
	}
}

func TestScan_ListFailureIsData(t *testing.T) {
	dir := &fakeDirectory{listErr: errors.New("service unreachable")}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), false)
	if result.OK {
		t.Fatal("OK = true for failed listing")
	}
	if result.Err != "service unreachable" {
		t.Errorf("Err = %q, want the listing error", result.Err)
	}
	if result.Matches != nil {
		t.Errorf("failed scan carried %d matches, want none", len(result.Matches))
	}
}

func TestScan_BlocksMatches(t *testing.T) {
	dir := &fakeDirectory{clients: map[string][]models.Client{
		"n1": {
			{ID: "c1", MAC: "AA:BB:CC:00:00:01"},
			{ID: "c2", MAC: "AA:BB:CC:00:00:02"},
			{ID: "c3", MAC: "11:22:33:00:00:01"},
		},
	}}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), true)
	if len(result.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(result.Matches))
	}
	for _, m := range result.Matches {
		if m.Blocked != models.BlockSucceeded {
			t.Errorf("client %s: Blocked = %q, want %q", m.ID, m.Blocked, models.BlockSucceeded)
		}
	}
	if len(dir.blocked) != 2 {
		t.Errorf("directory saw %d block calls, want 2", len(dir.blocked))
	}
}

func TestScan_BlockFailureRecordedNotRaised(t *testing.T) {
	dir := &fakeDirectory{
		clients:  map[string][]models.Client{"n1": {{ID: "c1", MAC: "AA:BB:CC:00:00:01"}}},
		blockErr: errors.New("policy update rejected"),
	}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), true)
	if !result.OK {
		t.Fatal("scan failed because a block failed")
	}
	m := result.Matches[0]
	if m.Blocked != models.BlockFailed {
		t.Errorf("Blocked = %q, want %q", m.Blocked, models.BlockFailed)
	}
	if m.BlockDetail != "policy update rejected" {
		t.Errorf("BlockDetail = %q, want the block error", m.BlockDetail)
	}
}

func TestScan_BlockPolicyMismatchIsFailure(t *testing.T) {
	dir := &fakeDirectory{
		clients:    map[string][]models.Client{"n1": {{ID: "c1", MAC: "AA:BB:CC:00:00:01"}}},
		failPolicy: true,
	}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), true)
	if got := result.Matches[0].Blocked; got != models.BlockFailed {
		t.Errorf("Blocked = %q, want %q", got, models.BlockFailed)
	}
}

func TestScan_EmptyNetwork(t *testing.T) {
	dir := &fakeDirectory{clients: map[string][]models.Client{}}
	s := New(dir, testRules(), nil, zap.NewNop())

	result := s.Scan(context.Background(), testNetwork(), false)
	if !result.OK {
		t.Fatal("empty network should scan cleanly")
	}
	if len(result.Matches) != 0 {
		t.Errorf("got %d matches from empty network", len(result.Matches))
	}
}
