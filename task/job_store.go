package task

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/storage"
)

// JobStore caches job outputs in object storage as <prefix><job>.<ext>, with
// the job name path-escaped so every name maps to its own key.
type JobStore struct {
	task   string
	prefix string
	codec  Codec
	client storage.ByteClient
}

// NewJobStore returns a cache for taskName's outputs under prefix.
func NewJobStore(taskName string, st storage.Storage, prefix string, codec Codec) *JobStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &JobStore{
		task:   taskName,
		prefix: prefix,
		codec:  codec,
		client: storage.NewByteClient(st),
	}
}

func (s *JobStore) key(job string) string {
	return s.prefix + escapeJob(job) + "." + s.codec.Ext()
}

// escapeJob keeps the name a single path segment. A leading dot is escaped
// too so "." and ".." never reach the backend and no key looks hidden.
func escapeJob(job string) string {
	esc := url.PathEscape(job)
	if strings.HasPrefix(esc, ".") {
		esc = "%2E" + esc[1:]
	}
	return esc
}

// Has reports whether an output for job is cached. Storage errors read as
// not cached so the job is recomputed.
func (s *JobStore) Has(ctx context.Context, job string) bool {
	ok, err := s.client.Exists(ctx, s.key(job))
	return err == nil && ok
}

// Load decodes the cached output of job.
func (s *JobStore) Load(ctx context.Context, job string) (Data, error) {
	b, err := s.client.Get(ctx, s.key(job))
	if err != nil {
		return nil, errors.JobDataIO(s.task, job, err)
	}
	v, err := s.codec.Unmarshal(b)
	if err != nil {
		return nil, errors.JobDataIO(s.task, job, err)
	}
	return v, nil
}

// Save encodes and stores the output of job.
func (s *JobStore) Save(ctx context.Context, job string, data Data) error {
	b, err := s.codec.Marshal(data)
	if err != nil {
		return errors.JobDataIO(s.task, job, err)
	}
	if err := s.client.Put(ctx, s.key(job), b); err != nil {
		return errors.JobDataIO(s.task, job, err)
	}
	return nil
}

// Delete drops the cached output of job.
func (s *JobStore) Delete(ctx context.Context, job string) error {
	if err := s.client.Delete(ctx, s.key(job)); err != nil {
		return errors.JobDataIO(s.task, job, err)
	}
	return nil
}

// List returns the names of all cached jobs, sorted.
func (s *JobStore) List(ctx context.Context) ([]string, error) {
	files, err := s.client.List(ctx, s.prefix)
	if err != nil {
		return nil, errors.JobDataIO(s.task, "", err)
	}
	suffix := "." + s.codec.Ext()
	names := make([]string, 0, len(files))
	for _, f := range files {
		rel := strings.TrimPrefix(f.Path, s.prefix)
		if strings.Contains(rel, "/") || !strings.HasSuffix(rel, suffix) {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(rel, suffix))
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
