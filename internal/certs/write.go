// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package certs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// writeFileAtomic writes data to a temporary file next to filename and renames it afterwards, so
// that readers either see the old or the new content.
func writeFileAtomic(fs afero.Fs, filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	if err := fs.Chmod(tmpName, perm); err != nil {
		fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	if err := fs.Rename(tmpName, filename); err != nil {
		fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	return nil
}
