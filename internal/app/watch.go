package app

import (
	"context"

	"github.com/dshills/simscript/internal/config/watcher"
	"github.com/dshills/simscript/internal/logging"
)

func (app *Application) newWatcher() (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.WithDebounce(app.cfg.Script.Debounce.Std()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(app.scriptPath); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// watch reloads the script whenever the watcher reports a change, until
// ctx ends.
func (app *Application) watch(ctx context.Context, w *watcher.Watcher) {
	log := logging.Component(app.log, logging.ComponentWatch)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if ev.Op&(watcher.OpRemove|watcher.OpRename) != 0 && ev.Op&(watcher.OpCreate|watcher.OpWrite) == 0 {
				log.Warn().Str("path", ev.Path).Stringer("op", ev.Op).Msg("script removed")
				continue
			}
			log.Info().Str("path", ev.Path).Stringer("op", ev.Op).Msg("script changed")
			if err := app.Reload(); err != nil {
				log.Error().Err(err).Msg("reload not queued")
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
