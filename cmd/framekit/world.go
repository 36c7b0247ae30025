package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/internal/host"
	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/fsm"
)

// Bullet is a pooled projectile fired by turrets.
type Bullet struct {
	X, Y   float64
	Active bool
}

func (b *Bullet) OnSpawn()   { b.Active = true }
func (b *Bullet) OnUnspawn() { *b = Bullet{} }

// Spark is a short-lived pooled effect shown while a turret fires.
type Spark struct {
	Lit bool
}

func (s *Spark) OnSpawn()   { s.Lit = true }
func (s *Spark) OnUnspawn() { s.Lit = false }

func newCatalog() *host.Catalog {
	catalog := host.NewCatalog()
	_ = host.Register[*Bullet](catalog, "bullet")
	_ = host.Register[*Spark](catalog, "spark")
	return catalog
}

// Turret owns the bullets it fired until it goes idle again.
type Turret struct {
	ID      int
	pools   *cachepool.Registry
	logger  *zap.Logger
	bullets []*Bullet
	spark   *Spark
}

func (t *Turret) release() {
	for _, b := range t.bullets {
		if err := t.pools.Unspawn(b); err != nil {
			t.logger.Warn("failed to return bullet", zap.Error(err))
		}
	}
	t.bullets = t.bullets[:0]
	if t.spark != nil {
		if err := t.pools.Unspawn(t.spark); err != nil {
			t.logger.Warn("failed to return spark", zap.Error(err))
		}
		t.spark = nil
	}
}

const (
	idleFor = 500 * time.Millisecond
	aimFor  = 250 * time.Millisecond
	fireFor = 100 * time.Millisecond
)

type turretIdle struct {
	fsm.StateBase[*Turret]
}

func (turretIdle) OnEnter(f *fsm.FSM[*Turret]) {
	f.Owner().release()
}

func (turretIdle) OnUpdate(f *fsm.FSM[*Turret], _, _ time.Duration) {
	if f.CurrentStateTime() >= idleFor {
		_ = fsm.ChangeState[*turretAim](f)
	}
}

func (turretIdle) OnExit(f *fsm.FSM[*Turret], isShutdown bool) {
	if isShutdown {
		f.Owner().release()
	}
}

type turretAim struct {
	fsm.StateBase[*Turret]
}

func (turretAim) OnUpdate(f *fsm.FSM[*Turret], _, _ time.Duration) {
	if f.CurrentStateTime() >= aimFor {
		_ = fsm.ChangeState[*turretFire](f)
	}
}

func (turretAim) OnExit(f *fsm.FSM[*Turret], isShutdown bool) {
	if isShutdown {
		f.Owner().release()
	}
}

type turretFire struct {
	fsm.StateBase[*Turret]
}

func (turretFire) OnEnter(f *fsm.FSM[*Turret]) {
	t := f.Owner()
	b, err := cachepool.Spawn[*Bullet](t.pools)
	if err != nil {
		t.logger.Warn("failed to spawn bullet", zap.Error(err))
		return
	}
	b.X, b.Y = float64(t.ID), 0
	t.bullets = append(t.bullets, b)

	if t.spark == nil {
		if t.spark, err = cachepool.Spawn[*Spark](t.pools); err != nil {
			t.logger.Warn("failed to spawn spark", zap.Error(err))
		}
	}

	shots, _ := fsm.GetData[int](f, "shots")
	_ = f.SetData("shots", shots+1)
}

func (turretFire) OnUpdate(f *fsm.FSM[*Turret], _, _ time.Duration) {
	if f.CurrentStateTime() >= fireFor {
		_ = fsm.ChangeState[*turretIdle](f)
	}
}

func (turretFire) OnExit(f *fsm.FSM[*Turret], isShutdown bool) {
	if isShutdown {
		f.Owner().release()
	}
}

// spawnTurrets creates and starts count turret machines named turret-N.
func spawnTurrets(rt *host.Runtime, count int, log *zap.Logger) error {
	return rt.Do(func(pools *cachepool.Registry, machines *fsm.Registry) error {
		for i := 0; i < count; i++ {
			owner := &Turret{ID: i, pools: pools, logger: log}
			f, err := fsm.Create(machines, fmt.Sprintf("turret-%d", i), owner,
				fsm.State[*Turret](&turretIdle{}), &turretAim{}, &turretFire{})
			if err != nil {
				return err
			}
			if err := fsm.Start[*turretIdle](f); err != nil {
				return err
			}
		}
		return nil
	})
}

// bulletScenario reserves, spawns, returns and trims bullets the way a
// level load followed by a cleanup would.
func bulletScenario(rt *host.Runtime) ([]*Bullet, error) {
	var live []*Bullet
	err := rt.Do(func(pools *cachepool.Registry, _ *fsm.Registry) error {
		if err := cachepool.Reserve[*Bullet](pools, 5); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			b, err := cachepool.Spawn[*Bullet](pools)
			if err != nil {
				return err
			}
			live = append(live, b)
		}
		if err := pools.Unspawn(live[0]); err != nil {
			return err
		}
		live = live[1:]
		_, err := cachepool.DiscardAll[*Bullet](pools)
		return err
	})
	return live, err
}
