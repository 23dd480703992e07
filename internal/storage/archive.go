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

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/crypto"
	"github.com/lukasdietrich/briefdirect/internal/log"
)

const (
	blobExtension = ".eml"
	maxIDLength   = 128
)

// ErrInvalidBlobID is returned for blob ids, that would leave the archive folder.
var ErrInvalidBlobID = errors.New("storage: invalid blob id")

// ArchiveOptions configure the message archive.
type ArchiveOptions struct {
	// Foldername is the folder received messages are written to.
	Foldername string `mapstructure:"foldername"`
}

// Archive is a permanent storage for received messages.
type Archive interface {
	// Write stores the content of a message and returns the blob id and the number of bytes
	// written. The blob id is "<unix-timestamp>_<sanitized message-id>.eml".
	Write(ctx context.Context, messageID string, receivedAt time.Time, content []byte) (string, int64, error)
	// Reader opens a stored message. The caller has to close the reader.
	Reader(id string) (io.ReadCloser, error)
	// Delete removes a stored message.
	Delete(ctx context.Context, id string) error
	// List returns all blob ids in lexical order, which is the order they were received in.
	List() ([]string, error)
}

type archive struct {
	fs    afero.Fs
	idGen crypto.IDGenerator
}

// NewArchive creates the archive folder and returns the archive.
func NewArchive(fs afero.Fs, idGen crypto.IDGenerator, opts ArchiveOptions) (Archive, error) {
	if err := fs.MkdirAll(opts.Foldername, 0700); err != nil {
		return nil, err
	}

	return &archive{
		fs:    afero.NewBasePathFs(fs, opts.Foldername),
		idGen: idGen,
	}, nil
}

func (a *archive) Write(
	ctx context.Context,
	messageID string,
	receivedAt time.Time,
	content []byte,
) (string, int64, error) {
	name := SanitizeMessageID(messageID)
	if name == "" {
		id, err := a.idGen.GenerateID()
		if err != nil {
			return "", -1, err
		}

		name = id
	}

	id, f, err := a.create(receivedAt.Unix(), name)
	if err != nil {
		return "", -1, err
	}

	log.DebugContext(ctx).
		Str("blob", id).
		Msg("archiving message")

	size, err := io.Copy(f, bytes.NewReader(content))
	if err != nil {
		f.Close()
		a.fs.Remove(id) // nolint:errcheck

		return "", -1, err
	}

	return id, size, f.Close()
}

// create opens a new file exclusively. Message-ids are not trusted to be unique, so a counter is
// appended on collision.
func (a *archive) create(timestamp int64, name string) (string, afero.File, error) {
	const maxAttempts = 100

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id := fmt.Sprintf("%d_%s%s", timestamp, name, blobExtension)
		if attempt > 0 {
			id = fmt.Sprintf("%d_%s_%d%s", timestamp, name, attempt, blobExtension)
		}

		f, err := a.fs.OpenFile(id, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			return id, f, nil
		}

		if !os.IsExist(err) {
			return "", nil, err
		}
	}

	return "", nil, fmt.Errorf("storage: no free blob id for %q", name)
}

func (a *archive) Reader(id string) (io.ReadCloser, error) {
	if err := validateBlobID(id); err != nil {
		return nil, err
	}

	return a.fs.Open(id)
}

func (a *archive) Delete(ctx context.Context, id string) error {
	if err := validateBlobID(id); err != nil {
		return err
	}

	log.DebugContext(ctx).
		Str("blob", id).
		Msg("removing archived message")

	return a.fs.Remove(id)
}

func (a *archive) List() ([]string, error) {
	infos, err := afero.ReadDir(a.fs, "/")
	if err != nil {
		return nil, err
	}

	var ids []string

	for _, info := range infos {
		if !info.IsDir() && strings.HasSuffix(info.Name(), blobExtension) {
			ids = append(ids, info.Name())
		}
	}

	return ids, nil
}

func validateBlobID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidBlobID, id)
	}

	return nil
}

// SanitizeMessageID turns a message-id into a safe filename. Angle brackets are removed, every
// character outside of [A-Za-z0-9.@_-] is replaced by an underscore.
func SanitizeMessageID(messageID string) string {
	messageID = strings.Trim(strings.TrimSpace(messageID), "<>")

	var b strings.Builder

	for _, r := range messageID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '@' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}

		if b.Len() >= maxIDLength {
			break
		}
	}

	return strings.Trim(b.String(), ".")
}
