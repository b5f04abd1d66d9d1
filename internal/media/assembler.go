package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Chunk is one piece of a chunked upload.
type Chunk struct {
	// Owner identifies the uploading connection.
	Owner        string
	FileName     string
	Data         string // base64
	IsLast       bool
	DeclaredSize int64
}

// Upload describes a finalized chunked upload.
type Upload struct {
	WebPath  string
	FileName string
	Size     int64
	IsImage  bool
}

type uploadKey struct {
	owner string
	name  string
}

type pending struct {
	path    string
	file    *os.File
	written int64
}

// Assembler reassembles chunked uploads into files under
// <root>/chat_files. Uploads are keyed by owning connection and original
// file name, so two connections may upload files of the same name
// concurrently. A key becomes reusable once its last chunk has been
// processed.
type Assembler struct {
	store *Store

	mu      sync.Mutex
	uploads map[uploadKey]*pending
}

// NewAssembler returns an Assembler writing through store.
func NewAssembler(store *Store) *Assembler {
	return &Assembler{store: store, uploads: make(map[uploadKey]*pending)}
}

// InFlight returns the number of uploads awaiting their last chunk.
func (a *Assembler) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.uploads)
}

// Append decodes and appends one chunk. It returns nil until the chunk
// flagged IsLast arrives, then the finalized Upload.
func (a *Assembler) Append(ctx context.Context, c Chunk) (*Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.FileName) == "" {
		return nil, ErrMissingFileName
	}
	data, err := decodeBase64(c.Data)
	if err != nil {
		return nil, err
	}

	key := uploadKey{owner: c.Owner, name: c.FileName}
	a.mu.Lock()
	p, ok := a.uploads[key]
	if !ok {
		p, err = a.open(c.FileName)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		a.uploads[key] = p
	}
	if c.IsLast {
		delete(a.uploads, key)
	}
	a.mu.Unlock()

	n, werr := p.file.Write(data)
	p.written += int64(n)
	if werr != nil {
		a.abort(key, p)
		return nil, fmt.Errorf("append chunk: %w", werr)
	}
	if !c.IsLast {
		return nil, nil
	}
	if err := p.file.Close(); err != nil {
		_ = os.Remove(p.path)
		return nil, fmt.Errorf("close upload: %w", err)
	}
	return a.finalize(c, p), nil
}

func (a *Assembler) open(fileName string) (*pending, error) {
	dir, err := a.store.dir(CategoryChatFiles)
	if err != nil {
		return nil, err
	}
	safe := SafeFileName(fileName)
	ms := a.store.now().UnixMilli()
	for i := 0; i < 8; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%d-%s", ms+int64(i), safe))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &pending{path: path, file: f}, nil
	}
	return nil, fmt.Errorf("allocate upload path for %q: %w", fileName, os.ErrExist)
}

func (a *Assembler) finalize(c Chunk, p *pending) *Upload {
	size := c.DeclaredSize
	if size <= 0 {
		size = p.written
	}
	up := &Upload{
		WebPath:  WebPath(CategoryChatFiles, filepath.Base(p.path)),
		FileName: c.FileName,
		Size:     size,
		IsImage:  IsImageName(c.FileName),
	}
	if !up.IsImage {
		return up
	}

	stem := strings.TrimSuffix(SafeFileName(c.FileName), filepath.Ext(SafeFileName(c.FileName)))
	name := fmt.Sprintf("%d-%s.jpg", a.store.now().UnixMilli(), stem)
	dst := filepath.Join(filepath.Dir(p.path), name)
	if err := a.store.tc.TranscodeFile(p.path, dst); err != nil {
		log.Warn().Err(err).Str("file", c.FileName).Msg("media: keeping original upload")
		return up
	}
	if err := os.Remove(p.path); err != nil {
		log.Warn().Err(err).Str("path", p.path).Msg("media: remove pre-transcode file")
	}
	up.WebPath = WebPath(CategoryChatFiles, name)
	return up
}

func (a *Assembler) abort(key uploadKey, p *pending) {
	a.mu.Lock()
	if cur, ok := a.uploads[key]; ok && cur == p {
		delete(a.uploads, key)
	}
	a.mu.Unlock()
	_ = p.file.Close()
	_ = os.Remove(p.path)
}

// Discard drops every in-flight upload of owner and deletes the partial
// files. It returns the number of uploads discarded.
func (a *Assembler) Discard(owner string) int {
	a.mu.Lock()
	var drop []*pending
	for k, p := range a.uploads {
		if k.owner == owner {
			drop = append(drop, p)
			delete(a.uploads, k)
		}
	}
	a.mu.Unlock()

	for _, p := range drop {
		_ = p.file.Close()
		_ = os.Remove(p.path)
	}
	return len(drop)
}

// Close discards every in-flight upload.
func (a *Assembler) Close() {
	a.mu.Lock()
	all := a.uploads
	a.uploads = make(map[uploadKey]*pending)
	a.mu.Unlock()
	for _, p := range all {
		_ = p.file.Close()
		_ = os.Remove(p.path)
	}
}
