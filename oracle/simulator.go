// Package oracle simulates the off-chain oracles that answer flight status requests.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"flightsurety/config"
	"flightsurety/contract"
	"flightsurety/model"

	"github.com/hyperledger/fabric/common/flogging"
	"golang.org/x/sync/errgroup"
)

var logger = flogging.MustGetLogger("flightsurety.oracle")

// Ledger is the simulator's view of the contract. Each call is one transaction
// submitted by the named oracle identity.
type Ledger interface {
	RegisterOracle(ctx context.Context, oracle string, fee string) ([]int, error)
	MyIndexes(ctx context.Context, oracle string) ([]int, error)
	SubmitOracleResponse(ctx context.Context, oracle string, req model.OracleRequestEvent, status model.StatusCode) error
}

// StatusChooser picks the status an oracle reports for a request.
type StatusChooser func(rng *rand.Rand, oracle string, req model.OracleRequestEvent) model.StatusCode

// Options configures a Simulator.
type Options struct {
	Count        int
	MaxAttempts  int
	RetryBackoff time.Duration
	Seed         int64
	Fee          string
	// NamePrefix prefixes the generated oracle identities.
	NamePrefix string
	Chooser    StatusChooser
	Metrics    *Metrics
}

// OptionsFromConfig maps the oracle section of the configuration.
func OptionsFromConfig(cfg config.OracleConfig, metrics *Metrics) Options {
	return Options{
		Count:        cfg.Count,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		Seed:         cfg.Seed,
		Metrics:      metrics,
	}
}

// terminal rejections; retrying them cannot succeed.
var terminalCodes = map[contract.ErrorCode]bool{
	contract.CodeRequestClosed:       true,
	contract.CodeRequestNotFound:     true,
	contract.CodeOracleNotRegistered: true,
	contract.CodeDuplicateResponse:   true,
	contract.CodeRequestExpired:      true,
	contract.CodeInvalidInput:        true,
}

// Simulator owns a set of oracle identities and answers request events on their behalf.
type Simulator struct {
	ledger Ledger
	opts   Options

	mu      sync.Mutex
	rng     *rand.Rand
	byIndex map[int][]string
	handled map[string]bool
}

// New returns a simulator with defaults filled in for unset options.
func New(ledger Ledger, opts Options) *Simulator {
	if opts.Count <= 0 {
		opts.Count = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Fee == "" {
		opts.Fee = contract.RegistrationFee.String()
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = "oracle"
	}
	if opts.Chooser == nil {
		opts.Chooser = WeightedStatus
	}
	return &Simulator{
		ledger:  ledger,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		byIndex: map[int][]string{},
		handled: map[string]bool{},
	}
}

// OracleName returns the identity of the i-th simulated oracle.
func (s *Simulator) OracleName(i int) string {
	return fmt.Sprintf("%s-%02d", s.opts.NamePrefix, i)
}

// Register registers every oracle, retrying each once. It succeeds when at least one
// oracle holds indexes.
func (s *Simulator) Register(ctx context.Context) error {
	registered := 0
	for i := 0; i < s.opts.Count; i++ {
		name := s.OracleName(i)
		indexes, err := s.registerOne(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warningf("Register: oracle '%s' skipped: %v", name, err)
			continue
		}
		s.mu.Lock()
		for _, idx := range indexes {
			s.byIndex[idx] = append(s.byIndex[idx], name)
		}
		s.mu.Unlock()
		registered++
	}
	s.opts.Metrics.setRegistered(registered)
	if registered == 0 {
		return errors.New("no oracle could be registered")
	}
	logger.Infof("Register: %d of %d oracles registered", registered, s.opts.Count)
	return nil
}

func (s *Simulator) registerOne(ctx context.Context, name string) ([]int, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		indexes, err := s.ledger.RegisterOracle(ctx, name, s.opts.Fee)
		if err == nil {
			return indexes, nil
		}
		// An earlier attempt may have committed without us seeing the result.
		if code, ok := contract.CodeOf(err); ok && code == contract.CodeAlreadyRegistered {
			return s.ledger.MyIndexes(ctx, name)
		}
		lastErr = err
		if err := sleep(ctx, s.opts.RetryBackoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Holders returns the registered oracles assigned index, in name order.
func (s *Simulator) Holders(index int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := append([]string(nil), s.byIndex[index]...)
	sort.Strings(holders)
	return holders
}

// Run answers request events until events is closed or ctx is done. Failed requests are
// logged and left unhandled so a later announcement of the same request retries them.
func (s *Simulator) Run(ctx context.Context, events <-chan model.OracleRequestEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warningf("Run: request %s not fully answered: %v", ev.RequestID, err)
			}
		}
	}
}

// Handle submits a response from every oracle holding the request's index.
func (s *Simulator) Handle(ctx context.Context, ev model.OracleRequestEvent) error {
	s.mu.Lock()
	if s.handled[ev.RequestID] {
		s.mu.Unlock()
		s.opts.Metrics.incRequest("duplicate")
		logger.Debugf("Handle: request %s already answered", ev.RequestID)
		return nil
	}
	holders := append([]string(nil), s.byIndex[ev.Index]...)
	sort.Strings(holders)
	statuses := make([]model.StatusCode, len(holders))
	for i, oracle := range holders {
		statuses[i] = s.opts.Chooser(s.rng, oracle, ev)
	}
	s.mu.Unlock()

	if len(holders) == 0 {
		s.opts.Metrics.incRequest("unassigned")
		logger.Warningf("Handle: no simulated oracle holds index %d for request %s", ev.Index, ev.RequestID)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range holders {
		oracle, status := holders[i], statuses[i]
		g.Go(func() error {
			return s.submit(gctx, oracle, ev, status)
		})
	}
	if err := g.Wait(); err != nil {
		s.opts.Metrics.incRequest("failed")
		return err
	}

	s.mu.Lock()
	s.handled[ev.RequestID] = true
	s.mu.Unlock()
	s.opts.Metrics.incRequest("handled")
	return nil
}

// submit delivers one response at least once. Terminal rejections end the attempt
// without error; transient failures are retried up to MaxAttempts.
func (s *Simulator) submit(ctx context.Context, oracle string, ev model.OracleRequestEvent, status model.StatusCode) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		start := time.Now()
		err := s.ledger.SubmitOracleResponse(ctx, oracle, ev, status)
		s.opts.Metrics.observeAttempt(time.Since(start))
		if err == nil {
			s.opts.Metrics.incResponse("accepted", status.String())
			logger.Debugf("submit: %s reported %s on request %s", oracle, status, ev.RequestID)
			return nil
		}
		if code, ok := contract.CodeOf(err); ok && terminalCodes[code] {
			s.opts.Metrics.incResponse("rejected", status.String())
			s.opts.Metrics.incRejection(string(code))
			logger.Debugf("submit: %s stopped on request %s: %v", oracle, ev.RequestID, err)
			return nil
		}
		lastErr = err
		logger.Warningf("submit: attempt %d of %d by %s failed: %v", attempt, s.opts.MaxAttempts, oracle, err)
		if attempt < s.opts.MaxAttempts {
			if err := sleep(ctx, time.Duration(attempt)*s.opts.RetryBackoff); err != nil {
				return err
			}
		}
	}
	s.opts.Metrics.incResponse("failed", status.String())
	return fmt.Errorf("oracle %s on request %s: %w", oracle, ev.RequestID, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WeightedStatus reports on time half of the time and spreads the rest over the late
// codes, with airline delays twice as likely as each other cause.
func WeightedStatus(rng *rand.Rand, _ string, _ model.OracleRequestEvent) model.StatusCode {
	switch n := rng.Intn(10); {
	case n < 5:
		return model.StatusOnTime
	case n < 7:
		return model.StatusLateAirline
	case n < 8:
		return model.StatusLateWeather
	case n < 9:
		return model.StatusLateTechnical
	default:
		return model.StatusLateOther
	}
}

// FixedStatus makes every oracle report status.
func FixedStatus(status model.StatusCode) StatusChooser {
	return func(*rand.Rand, string, model.OracleRequestEvent) model.StatusCode {
		return status
	}
}
