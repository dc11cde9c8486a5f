package scenario

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/factory"
	"farmScope/internal/farm"
	"farmScope/internal/faults"
	"farmScope/internal/manager"
	"farmScope/internal/metrics"
	"farmScope/internal/model"
	"farmScope/internal/oracle"
	"farmScope/internal/state"
)

// Names with a fixed role.
const (
	FactoryName = "factory"
	ManagerName = "manager"
)

// Options configures a Runner.
type Options struct {
	Context context.Context
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index     int    `json:"index"`
	Action    string `json:"action"`
	Timestamp uint64 `json:"timestamp"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Report is the outcome of a scenario run.
type Report struct {
	Name    string            `json:"name"`
	ChainID uint64            `json:"chain_id"`
	Steps   []StepResult      `json:"steps"`
	Logs    []model.LogRecord `json:"-"`
	Farms   []model.Farm      `json:"farms"`
	Tokens  []model.TokenMeta `json:"tokens"`
}

// Runner holds the environment a scenario runs against.
type Runner struct {
	sc      *Scenario
	env     *state.Env
	clock   *state.ManualClock
	bank    *asset.Bank
	factory *factory.Factory
	manager *manager.Manager
	oracles map[string]*oracle.Static
	farms   map[string]common.Address
	admin   common.Address
	logger  *zap.Logger
}

// NewRunner builds the environment: tokens, oracles, factory, manager and
// initial balances.
func NewRunner(sc *Scenario, opts Options) (*Runner, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	clock := state.NewManualClock(sc.Start)
	env := state.NewEnv(state.Config{
		Context: opts.Context,
		ChainID: sc.ChainID,
		Clock:   clock,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})

	r := &Runner{
		sc:      sc,
		env:     env,
		clock:   clock,
		bank:    asset.NewBank(env),
		oracles: make(map[string]*oracle.Static),
		farms:   make(map[string]common.Address),
		logger:  opts.Logger.With(zap.String("scenario", sc.Name)),
	}
	r.admin = r.address(sc.Admin)

	for _, token := range sc.Tokens {
		if token.Name == "" {
			return nil, fmt.Errorf("token name is required")
		}
		symbol := token.Symbol
		if symbol == "" {
			symbol = strings.ToUpper(token.Name)
		}
		decimals := uint8(18)
		if token.Decimals != nil {
			decimals = *token.Decimals
		}
		if err := r.bank.Register(r.address(token.Name), symbol, decimals); err != nil {
			return nil, fmt.Errorf("register token %s: %w", token.Name, err)
		}
	}

	whitelist := make(map[common.Address]oracle.Oracle, len(sc.Oracles))
	for _, def := range sc.Oracles {
		prices := oracle.NewStatic()
		for _, price := range def.Prices {
			if err := r.setPrice(prices, price); err != nil {
				return nil, fmt.Errorf("oracle %s: %w", def.Name, err)
			}
		}
		r.oracles[def.Name] = prices
		whitelist[r.address(def.Name)] = prices
	}

	factoryCfg := factory.Config{
		Address: r.address(FactoryName),
		Admin:   r.admin,
		Oracles: whitelist,
	}
	if sc.Factory.FeeToken != "" {
		factoryCfg.FeeToken = r.address(sc.Factory.FeeToken)
	}
	if sc.Factory.CreationFee != "" {
		fee, err := ParseAmount(sc.Factory.CreationFee)
		if err != nil {
			return nil, fmt.Errorf("creation fee: %w", err)
		}
		factoryCfg.CreationFee = fee
	}
	fac, err := factory.New(env, r.bank, factoryCfg)
	if err != nil {
		return nil, fmt.Errorf("new factory: %w", err)
	}
	mgr, err := manager.New(env, r.bank, manager.Config{
		Address:                 r.address(ManagerName),
		Admin:                   r.admin,
		Registry:                fac,
		MinimumEmissionDuration: sc.Manager.MinimumEmissionDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}
	if err := fac.SetManager(r.admin, mgr.Address()); err != nil {
		return nil, fmt.Errorf("set manager: %w", err)
	}
	r.factory, r.manager = fac, mgr

	for _, balance := range sc.Balances {
		amount, err := ParseAmount(balance.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance %s/%s: %w", balance.Account, balance.Token, err)
		}
		token, account := r.address(balance.Token), r.address(balance.Account)
		if err := r.bank.Mint(token, account, amount); err != nil {
			return nil, fmt.Errorf("mint %s to %s: %w", balance.Token, balance.Account, err)
		}
		for _, spender := range balance.Approve {
			if err := r.bank.Approve(token, account, r.address(spender), amount); err != nil {
				return nil, fmt.Errorf("approve %s for %s: %w", balance.Token, spender, err)
			}
		}
	}
	return r, nil
}

// Run executes sc with opts and returns its report.
func Run(sc *Scenario, opts Options) (*Report, error) {
	r, err := NewRunner(sc, opts)
	if err != nil {
		return nil, err
	}
	return r.Run()
}

// Run executes every step in order. It stops at the first step whose outcome
// differs from its expect_error, returning the partial report.
func (r *Runner) Run() (*Report, error) {
	report := &Report{Name: r.sc.Name, ChainID: r.sc.ChainID}
	for i, step := range r.sc.Steps {
		result, err := r.step(step)
		res := StepResult{
			Index:     i,
			Action:    step.Action,
			Timestamp: r.env.Now(),
			ErrorKind: faults.Kind(err),
			Result:    result,
		}
		if err != nil {
			res.Error = err.Error()
		}
		report.Steps = append(report.Steps, res)

		if res.ErrorKind != step.ExpectError {
			r.logger.Warn("step outcome mismatch",
				zap.Int("step", i),
				zap.String("action", step.Action),
				zap.String("expected", step.ExpectError),
				zap.String("got", res.ErrorKind),
				zap.Error(err),
			)
			r.fill(report)
			if err == nil {
				return report, fmt.Errorf("step %d (%s): expected %s error, got success", i, step.Action, step.ExpectError)
			}
			return report, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		r.logger.Debug("step done", zap.Int("step", i), zap.String("action", step.Action), zap.String("kind", res.ErrorKind))
	}
	r.fill(report)
	r.logger.Info("scenario complete", zap.Int("steps", len(report.Steps)), zap.Int("logs", len(report.Logs)), zap.Int("farms", len(report.Farms)))
	return report, nil
}

func (r *Runner) fill(report *Report) {
	report.Logs = r.env.Logs()
	report.Farms = r.factory.Farms()
	report.Tokens = r.bank.Tokens()
}

func (r *Runner) Env() *state.Env           { return r.env }
func (r *Runner) Bank() *asset.Bank         { return r.bank }
func (r *Runner) Factory() *factory.Factory { return r.factory }
func (r *Runner) Manager() *manager.Manager { return r.manager }
func (r *Runner) Clock() *state.ManualClock { return r.clock }

// Farm returns the pool created under name.
func (r *Runner) Farm(name string) (*farm.Pool, error) {
	address, ok := r.farms[name]
	if !ok {
		address = r.address(name)
	}
	pool, ok := r.factory.Pool(address)
	if !ok {
		return nil, faults.InvalidInput("unknown farm %q", name)
	}
	return pool, nil
}

// Address resolves a scenario name: created farm names first, then the
// derived address.
func (r *Runner) Address(name string) common.Address {
	return r.address(name)
}

func (r *Runner) address(name string) common.Address {
	if address, ok := r.farms[name]; ok {
		return address
	}
	return NameAddress(name)
}

func (r *Runner) setPrice(prices *oracle.Static, def PriceDef) error {
	num, err := ParseAmount(def.Num)
	if err != nil {
		return fmt.Errorf("price num: %w", err)
	}
	den, err := ParseAmount(def.Den)
	if err != nil {
		return fmt.Errorf("price den: %w", err)
	}
	return prices.SetPrice(r.address(def.In), r.address(def.Out), num, den)
}

// amount parses a step amount. Malformed amounts are reported as invalid
// input so they can be expected like any other rejection.
func amount(value string) (*big.Int, error) {
	v, err := ParseAmount(value)
	if err != nil {
		return nil, faults.InvalidInput("%v", err)
	}
	return v, nil
}

func amounts(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := amount(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
