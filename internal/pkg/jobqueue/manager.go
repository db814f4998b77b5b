package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/internal/pkg/env"
	metrics "github.com/vitrine-app/vitrine/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Initialize sets up the global manager with its object store dependency.
// Must be called before GetManager.
func Initialize(blobs BlobDeleter) *Manager {
	managerOnce.Do(func() {
		workers := 3
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "3")); err == nil && v > 0 {
			workers = v
		}
		globalManager = &Manager{
			queue:  NewQueue(workers, blobs),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Job queue manager not initialized. Call Initialize first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// EnqueueBlobDelete schedules cleanup of an orphaned stored object.
func (m *Manager) EnqueueBlobDelete(ownerID, objectKey string) {
	payload := BlobDeleteJobPayload{OwnerID: ownerID, ObjectKey: objectKey}
	if _, err := m.queue.EnqueueJob(JobTypeBlobDelete, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue Manager] Failed to enqueue blob delete for %s: %v", objectKey, err)
	}
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes pending view counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
