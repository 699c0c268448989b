// Package persistence contains the default [domain.Persistence]
// implementation, an append-only log of framed records replayed on load.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dolmen-go/contextio"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/deserializer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/storage"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/uncomparable"
)

// Default permissions of created files and directories.
const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644
)

// DefaultCorruptAlertThreshold is the share of unreadable records tolerated
// by default.
const DefaultCorruptAlertThreshold = 0.1

// Persistence implements domain.Persistence.
type Persistence struct {
	inMemoryOnly          bool
	filename              string
	corruptAlertThreshold float64
	fileMode              os.FileMode
	dirMode               os.FileMode
	serializer            domain.Serializer
	deserializer          domain.Deserializer
	storage               domain.Storage
	comparer              domain.Comparer
	hasher                domain.Hasher
	log                   *zap.SugaredLogger
}

// NewPersistence returns a new implementation of domain.Persistence.
func NewPersistence(options ...domain.PersistenceOption) (domain.Persistence, error) {
	opts := domain.PersistenceOptions{
		CorruptAlertThreshold: DefaultCorruptAlertThreshold,
		FileMode:              DefaultFileMode,
		DirMode:               DefaultDirMode,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Serializer == nil {
		opts.Serializer = serializer.NewSerializer()
	}
	if opts.Deserializer == nil {
		opts.Deserializer = deserializer.NewDeserializer()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewStorage()
	}
	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.Hasher == nil {
		opts.Hasher = hasher.NewHasher()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	if !opts.InMemoryOnly && strings.HasSuffix(opts.Filename, "~") {
		return nil, domain.ErrDatafileName{
			Name:   opts.Filename,
			Reason: "the ~ suffix is reserved for crash safe backup files",
		}
	}

	return &Persistence{
		inMemoryOnly:          opts.InMemoryOnly || opts.Filename == "",
		filename:              opts.Filename,
		corruptAlertThreshold: opts.CorruptAlertThreshold,
		fileMode:              opts.FileMode,
		dirMode:               opts.DirMode,
		serializer:            opts.Serializer,
		deserializer:          opts.Deserializer,
		storage:               opts.Storage,
		comparer:              opts.Comparer,
		hasher:                opts.Hasher,
		log:                   opts.Logger,
	}, nil
}

// Append implements domain.Persistence.
func (p *Persistence) Append(ctx context.Context, records ...domain.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	// In-memory only store
	if p.inMemoryOnly {
		return nil
	}

	toPersist := new(bytes.Buffer)
	wr := contextio.NewWriter(ctx, toPersist)
	for _, rec := range records {
		b, err := p.serializer.Serialize(ctx, rec)
		if err != nil {
			return err
		}
		if _, err = wr.Write(b); err != nil {
			return err
		}
	}
	if toPersist.Len() == 0 {
		return nil
	}

	_, err := p.storage.AppendFile(p.filename, p.fileMode, toPersist.Bytes())
	return err
}

// Load implements domain.Persistence.
func (p *Persistence) Load(ctx context.Context) (map[string][]domain.Document, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	if p.inMemoryOnly {
		return map[string][]domain.Document{}, true, nil
	}

	if err := p.storage.EnsureParentDirectoryExists(p.filename, p.dirMode); err != nil {
		return nil, false, err
	}
	created, err := p.storage.EnsureDatafileIntegrity(p.filename, p.fileMode)
	if err != nil {
		return nil, false, err
	}

	fileStream, err := p.storage.ReadFileStream(p.filename, p.fileMode)
	if err != nil {
		return nil, false, err
	}
	defer fileStream.Close()

	collections, err := p.replay(ctx, fileStream)
	if err != nil {
		return nil, false, err
	}

	// the log is compacted on every load, dropping tombstones and any
	// truncated tail
	if err := p.Rewrite(ctx, collections); err != nil {
		return nil, false, err
	}

	return collections, created, nil
}

func (p *Persistence) replay(ctx context.Context, rawStream io.Reader) (map[string][]domain.Document, error) {
	r := bufio.NewReader(contextio.NewReader(ctx, rawStream))

	if _, err := storage.ReadHeader(r); err != nil {
		// zero-length files are treated as empty stores
		if errors.Is(err, io.EOF) {
			return map[string][]domain.Document{}, nil
		}
		return nil, err
	}

	byCollection := make(map[string]*uncomparable.Map[domain.Document])
	var corruptItems, dataLength int

	for {
		frame, err := storage.ReadFrame(r)
		if err == io.EOF {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		dataLength++
		if err != nil {
			corruptItems++
			p.log.Warnw("datafile ends in a truncated record", "filename", p.filename, "error", err)
			break
		}
		rec, err := p.deserializer.Deserialize(ctx, frame)
		if err != nil {
			corruptItems++
			p.log.Warnw("skipping unreadable record", "filename", p.filename, "error", err)
			continue
		}
		if err := p.apply(byCollection, rec); err != nil {
			corruptItems++
			p.log.Warnw("skipping invalid record", "filename", p.filename, "collection", rec.Collection, "error", err)
			continue
		}
	}

	if dataLength > 0 {
		corruptionRate := float64(corruptItems) / float64(dataLength)
		if corruptionRate > p.corruptAlertThreshold {
			return nil, domain.ErrCorruptFiles{
				CorruptionRate:        corruptionRate,
				CorruptItems:          corruptItems,
				DataLength:            dataLength,
				CorruptAlertThreshold: p.corruptAlertThreshold,
			}
		}
	}

	res := make(map[string][]domain.Document, len(byCollection))
	for name, docs := range byCollection {
		if docs.Len() == 0 {
			continue
		}
		res[name] = slices.Collect(docs.Values())
	}
	return res, nil
}

func (p *Persistence) apply(byCollection map[string]*uncomparable.Map[domain.Document], rec domain.Record) error {
	if rec.Dropped {
		delete(byCollection, rec.Collection)
		return nil
	}
	docs, ok := byCollection[rec.Collection]
	if !ok {
		docs = uncomparable.New[domain.Document](p.hasher, p.comparer)
		byCollection[rec.Collection] = docs
	}
	if rec.Deleted {
		return docs.Delete(rec.Key)
	}
	if rec.Doc == nil || rec.Doc.ID() == nil {
		return errors.New("document has no key")
	}
	return docs.Set(rec.Doc.ID(), rec.Doc)
}

// Rewrite implements domain.Persistence.
func (p *Persistence) Rewrite(ctx context.Context, collections map[string][]domain.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.inMemoryOnly {
		return nil
	}

	var frames [][]byte
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, doc := range collections[name] {
			b, err := p.serializer.Serialize(ctx, domain.Record{Collection: name, Doc: doc})
			if err != nil {
				return err
			}
			frames = append(frames, b)
		}
	}

	return p.storage.CrashSafeWriteFrames(p.filename, frames, p.dirMode, p.fileMode)
}

// Drop implements domain.Persistence.
func (p *Persistence) Drop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.inMemoryOnly {
		return nil
	}
	for _, name := range []string{p.filename, p.filename + "~"} {
		exists, err := p.storage.Exists(name)
		if err != nil {
			return err
		}
		if exists {
			if err := p.storage.Remove(name); err != nil {
				return err
			}
		}
	}
	return nil
}
