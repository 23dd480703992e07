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

package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

// FileSink appends events as json lines to one file per day.
type FileSink struct {
	fs     afero.Fs
	folder string
	mu     sync.Mutex
}

// NewFileSink creates the audit folder and returns the sink.
func NewFileSink(fs afero.Fs, folder string) (*FileSink, error) {
	if err := fs.MkdirAll(folder, 0700); err != nil {
		return nil, err
	}

	return &FileSink{fs: fs, folder: folder}, nil
}

func (*FileSink) Name() string {
	return "file"
}

// Filename returns the file events of the given day are appended to.
func (s *FileSink) Filename(event models.AuditEvent) string {
	return filepath.Join(s.folder, "audit_"+event.Timestamp.UTC().Format("20060102")+".log")
}

func (s *FileSink) Append(_ context.Context, event models.AuditEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(s.Filename(event), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
