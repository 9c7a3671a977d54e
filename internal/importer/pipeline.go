package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brandforge/guidegen/internal/store"
)

// JobStatus is the state of one import job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one file import from upload to stored document.
type Job struct {
	mu sync.Mutex

	ID       string
	UserID   string
	Filename string
	Title    string

	Status JobStatus
	DocID  string
	Err    string

	CreatedAt time.Time
	UpdatedAt time.Time

	fileData []byte
}

// NewJob creates a queued job holding the uploaded bytes.
func NewJob(userID, filename, title string, data []byte) *Job {
	now := time.Now()
	sum := sha256.Sum256(append([]byte(userID+filename), data...))
	return &Job{
		ID:        hex.EncodeToString(sum[:])[:20],
		UserID:    userID,
		Filename:  filename,
		Title:     title,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

func (j *Job) setStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Err = err.Error()
	j.UpdatedAt = time.Now()
}

// Snapshot is a JSON-safe copy of job state.
type Snapshot struct {
	ID       string    `json:"job_id"`
	UserID   string    `json:"user_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	DocID    string    `json:"doc_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:       j.ID,
		UserID:   j.UserID,
		Filename: j.Filename,
		Status:   j.Status,
		DocID:    j.DocID,
		Error:    j.Err,
	}
}

// jobStore is a thread-safe in-memory job registry with TTL eviction.
type jobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func newJobStore(ttl time.Duration) *jobStore {
	return &jobStore{jobs: make(map[string]*Job), ttl: ttl}
}

func (s *jobStore) put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *jobStore) get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *jobStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// Pipeline runs file imports on a bounded worker pool.
type Pipeline struct {
	jobs    *jobStore
	queue   chan *Job
	store   *store.Store
	log     *slog.Logger
	workers int

	pdfFallback bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(st *store.Store, log *slog.Logger, workers, queueSize int, jobTTL time.Duration, pdfFallback bool) *Pipeline {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Pipeline{
		jobs:        newJobStore(jobTTL),
		queue:       make(chan *Job, queueSize),
		store:       st,
		log:         log,
		workers:     workers,
		pdfFallback: pdfFallback,
	}
}

// Start launches the worker goroutines and the TTL sweeper.
func (p *Pipeline) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-p.queue:
					if !ok {
						return
					}
					p.process(workerCtx, job)
				}
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				p.jobs.cleanup()
			}
		}
	}()
}

// Stop drains the pipeline.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.queue)
	p.wg.Wait()
}

// Submit queues a job. A full queue fails the job immediately.
func (p *Pipeline) Submit(job *Job) error {
	p.jobs.put(job)
	select {
	case p.queue <- job:
		return nil
	default:
		job.fail(fmt.Errorf("import queue is full"))
		return fmt.Errorf("import queue is full (%d)", cap(p.queue))
	}
}

// Get returns a job by id, or nil.
func (p *Pipeline) Get(id string) *Job {
	return p.jobs.get(id)
}

func (p *Pipeline) process(ctx context.Context, job *Job) {
	log := p.log.With("job_id", job.ID, "filename", job.Filename, "user_id", job.UserID)

	job.setStatus(StatusConverting)
	imp, err := ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported import format", "error", err)
		job.fail(err)
		return
	}
	if pdf, ok := imp.(*PDFImporter); ok {
		pdf.FallbackPdftotext = p.pdfFallback
	}

	blocks, err := imp.Import(bytes.NewReader(job.fileData), job.Filename)
	if err != nil {
		log.Error("import failed", "error", err)
		job.fail(fmt.Errorf("import: %w", err))
		return
	}

	markdown := RenderMarkdown(blocks)
	if markdown == "" {
		job.fail(fmt.Errorf("no importable content in %s", job.Filename))
		return
	}

	job.setStatus(StatusStoring)
	title := job.Title
	if title == "" {
		title = job.Filename
	}
	doc, err := p.store.CreateDocument(ctx, job.UserID, title, markdown)
	if err != nil {
		log.Error("store failed", "error", err)
		job.fail(fmt.Errorf("store: %w", err))
		return
	}

	job.mu.Lock()
	job.DocID = doc.ID
	job.Status = StatusCompleted
	job.UpdatedAt = time.Now()
	job.mu.Unlock()
	log.Info("import completed", "doc_id", doc.ID, "bytes", len(markdown))
}
