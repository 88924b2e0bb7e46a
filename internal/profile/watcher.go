// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package profile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultReloadInterval = 5 * time.Second

// Watcher reloads the store when the profile file changes. Filesystem
// notifications trigger an immediate reload; a modification-time poll
// covers filesystems where notifications are unavailable.
// Sessions already open keep the policy they were created with.
type Watcher struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	lastMod  time.Time
}

func NewWatcher(store *Store, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	w := &Watcher{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "profile"),
	}
	if info, err := os.Stat(store.Path()); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var notify <-chan fsnotify.Event
	var notifyErrs <-chan error
	if fw, err := w.notifier(); err != nil {
		w.logger.Warn("file notifications unavailable, polling only", "path", w.store.Path(), "error", err)
	} else {
		defer fw.Close()
		notify, notifyErrs = fw.Events, fw.Errors
	}

	target := filepath.Clean(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		case ev, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.reload()
			}
		case err, ok := <-notifyErrs:
			if !ok {
				notifyErrs = nil
				continue
			}
			w.logger.Warn("file notification error", "error", err)
		}
	}
}

// notifier watches the parent directory so editors that replace the file
// by rename are still seen.
func (w *Watcher) notifier() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(w.store.Path())); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

func (w *Watcher) check() {
	path := w.store.Path()
	info, err := os.Stat(path)
	if err != nil {
		w.logger.Warn("profile stat failed", "path", path, "error", err)
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.reload()
}

func (w *Watcher) reload() {
	path := w.store.Path()
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	if err := w.store.Reload(); err != nil {
		w.logger.Error("profile reload failed", "path", path, "error", err)
		return
	}
	w.logger.Info("profiles reloaded", "path", path, "driver", w.store.Driver())
}
