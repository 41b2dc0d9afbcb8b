// Copyright 2025 The Cast Authors
// This file is part of Cast.
//
// Cast is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cast is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cast. If not, see <http://www.gnu.org/licenses/>.

package sync

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/castkit/cast/casterr"
)

// acquireLock takes the advisory lock at <root>/.cast/lock, failing
// immediately (non-blocking) with Busy when another invocation holds it
// (spec.md 5: "multiple simultaneous syncs against overlapping cast
// roots are not supported").
func acquireLock(root string) (*flock.Flock, error) {
	path := filepath.Join(root, ".cast", "lock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, casterr.WrapIoError(path, err)
	}
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, casterr.WrapBusy(path, err)
	}
	if !ok {
		return nil, casterr.WrapBusy(path, nil)
	}
	return l, nil
}

func releaseLock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}
