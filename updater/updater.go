package updater

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"rowfilter/config"
	"rowfilter/engine"
	"rowfilter/source"
)

// MinInterval is the shortest refresh interval the updater accepts from config.
const MinInterval = time.Minute

// Updater periodically reloads tables that come from a URL.
type Updater struct {
	cfg    *config.Config
	engine *engine.Engine
	loader *source.Loader
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool

	// Interval between reloads, derived from config.URLInterval.
	Interval time.Duration
	// OnReload is called after every reload with its result.
	OnReload func(error)
}

// NewUpdater creates a new Updater.
func NewUpdater(cfg *config.Config, eng *engine.Engine, loader *source.Loader) *Updater {
	interval := cfg.URLInterval
	if interval <= 0 {
		interval = config.DefaultURLInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Updater{
		cfg:      cfg,
		engine:   eng,
		loader:   loader,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		Interval: interval,
	}
}

// Stop ends the reload loop and waits for a reload in progress to finish.
// It returns at once when RunSimple was never called.
func (u *Updater) Stop() {
	if !u.started.Load() {
		return
	}
	select {
	case <-u.stop:
	default:
		close(u.stop)
	}
	<-u.done
}

// RunSimple reloads ALL tables every Interval while at least one table is
// remote. It returns false when there is nothing to refresh or when it
// was already called.
func (u *Updater) RunSimple() bool {
	if !u.started.CompareAndSwap(false, true) {
		return false
	}

	hasRemote := false
	for _, t := range u.cfg.Tables {
		if t.URL != "" {
			hasRemote = true
			break
		}
	}

	if !hasRemote {
		log.Println("No remote tables to update.")
		close(u.done)
		return false
	}

	log.Printf("Updater started. Next update in %v", u.Interval)

	go func() {
		defer close(u.done)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-u.stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(u.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Println("Updater triggered...")
				err := u.engine.ReloadTables(ctx, u.loader)
				if u.OnReload != nil {
					u.OnReload(err)
				}
				log.Printf("Update complete. Next in %v", u.Interval)
			case <-u.stop:
				return
			}
		}
	}()
	return true
}
