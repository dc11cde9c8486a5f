// Package manager holds custody of every pool and forwards creator
// operations to it after checking the caller against the factory's creator
// index.
package manager

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/farm"
	"farmScope/internal/faults"
	"farmScope/internal/state"
)

const component = "manager"

// Registry resolves pools and their creators.
type Registry interface {
	GetCreator(pool common.Address) common.Address
	Pool(address common.Address) (*farm.Pool, bool)
}

type Config struct {
	Address                 common.Address
	Admin                   common.Address
	Registry                Registry
	MinimumEmissionDuration uint64
}

type Manager struct {
	env      *state.Env
	bank     asset.Transferrer
	registry Registry
	logger   *zap.Logger

	address     common.Address
	admin       common.Address
	minDuration uint64
}

func New(env *state.Env, bank asset.Transferrer, cfg Config) (*Manager, error) {
	if env == nil || bank == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("manager: env, bank and registry are required")
	}
	if cfg.Address == (common.Address{}) || cfg.Admin == (common.Address{}) {
		return nil, faults.InvalidInput("manager address and admin are required")
	}
	return &Manager{
		env:         env,
		bank:        bank,
		registry:    cfg.Registry,
		logger:      env.Logger().With(zap.String("component", component)),
		address:     cfg.Address,
		admin:       cfg.Admin,
		minDuration: cfg.MinimumEmissionDuration,
	}, nil
}

func (m *Manager) Address() common.Address { return m.address }
func (m *Manager) Admin() common.Address   { return m.admin }

// MinimumEmissionDuration is the shortest emission a creator may start.
func (m *Manager) MinimumEmissionDuration() uint64 {
	return m.minDuration
}

// SetMinimumEmissionDuration changes the emission floor.
func (m *Manager) SetMinimumEmissionDuration(caller common.Address, duration uint64) error {
	return m.env.Run(component, "set_minimum_emission_duration", func() error {
		if caller != m.admin {
			return faults.Unauthorized("caller %s is not the manager admin", caller.Hex())
		}
		state.Set(m.env.Journal(), &m.minDuration, duration)
		return nil
	})
}

// authorize resolves pool and checks caller is its creator, or the admin
// when allowAdmin is set. It returns the pool and the creator.
func (m *Manager) authorize(caller, pool common.Address, allowAdmin bool) (*farm.Pool, common.Address, error) {
	p, ok := m.registry.Pool(pool)
	if !ok {
		return nil, common.Address{}, faults.InvalidInput("unknown farm %s", pool.Hex())
	}
	creator := m.registry.GetCreator(pool)
	if caller == creator && creator != (common.Address{}) {
		return p, creator, nil
	}
	if allowAdmin && caller == m.admin {
		return p, creator, nil
	}
	return nil, common.Address{}, faults.Unauthorized("caller %s is not the creator of %s", caller.Hex(), pool.Hex())
}
