package admission

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/connector"
)

const auditForwardTimeout = 5 * time.Second

// csvHeader is the fixed header row of the connection log file.
var csvHeader = []string{"timestamp", "client_ip", "client_port", "date", "time", "year"}

// Entry is one connection audit record: a newly observed client endpoint
// with its timestamp decomposed into ISO, human date, human time, and year.
type Entry struct {
	Timestamp  string `json:"timestamp"`
	ClientIP   string `json:"client_ip"`
	ClientPort int    `json:"client_port"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Year       string `json:"year"`
}

func newEntry(ip string, port int, now time.Time) Entry {
	return Entry{
		Timestamp:  now.Format(time.RFC3339),
		ClientIP:   ip,
		ClientPort: port,
		Date:       now.Format("02/01/2006"),
		Time:       now.Format("15:04:05"),
		Year:       now.Format("2006"),
	}
}

// AuditLog queues connection records in memory and appends them to the
// connection log file in batches. A failed batch is re-queued ahead of
// newer entries so original order survives the retry; the queue itself is
// capped, dropping the oldest entries under sustained storage failure.
// When an audit API is configured, each record is also forwarded to it by
// a detached worker on a best-effort basis.
type AuditLog struct {
	mu     sync.Mutex
	cfg    *config.Config
	queue  []Entry
	closed bool

	client    *http.Client
	forwardCh chan Entry
	forwardWG sync.WaitGroup
}

// NewAuditLog creates the audit log and, when an audit API URL is
// configured, starts the forward worker.
func NewAuditLog(cfg *config.Config) *AuditLog {
	a := &AuditLog{
		cfg:    cfg,
		client: &http.Client{Timeout: auditForwardTimeout},
	}

	if cfg.GetBrowserData().AuditAPIURL != "" {
		a.forwardCh = make(chan Entry, 256)
		a.forwardWG.Add(1)
		go a.forwardLoop()
	}

	return a
}

// Record queues an audit entry for the endpoint and hands a copy to the
// forward worker. It never blocks the caller: a full forward buffer drops
// the forward copy, never the queued one.
func (a *AuditLog) Record(ip string, port int) {
	if !a.cfg.GetBrowserData().LoggingEnabled {
		return
	}

	entry := newEntry(ip, port, time.Now())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.queue = append(a.queue, entry)
	a.trimLocked()
	a.mu.Unlock()

	if a.forwardCh != nil {
		select {
		case a.forwardCh <- entry:
		default:
			log.Debug().Str("ip", ip).Msg("audit forward buffer full, entry not forwarded")
		}
	}
}

// trimLocked enforces the queue cap, dropping the oldest entries. Caller
// holds the mutex.
func (a *AuditLog) trimLocked() {
	max := a.cfg.GetBrowserData().AuditMaxQueue
	if max > 0 && len(a.queue) > max {
		dropped := len(a.queue) - max
		a.queue = a.queue[dropped:]
		log.Warn().Int("dropped", dropped).Msg("audit queue over cap, oldest entries dropped")
	}
}

// Flush appends all queued entries to the connection log file and returns
// the number written. On any write failure the whole batch is re-queued
// ahead of entries recorded in the meantime.
func (a *AuditLog) Flush() (int, error) {
	a.mu.Lock()
	batch := a.queue
	a.queue = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	if err := a.appendBatch(batch); err != nil {
		a.mu.Lock()
		a.queue = append(batch, a.queue...)
		a.trimLocked()
		a.mu.Unlock()
		return 0, err
	}

	log.Debug().Int("entries", len(batch)).Msg("audit log flushed")
	return len(batch), nil
}

func (a *AuditLog) appendBatch(batch []Entry) error {
	path := a.cfg.GetBrowserData().AuditFilePath

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	info, statErr := os.Stat(path)
	needHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}
	for _, e := range batch {
		row := []string{e.Timestamp, e.ClientIP, strconv.Itoa(e.ClientPort), e.Date, e.Time, e.Year}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write audit row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit rows: %w", err)
	}

	return nil
}

// LoadSeen reads the existing connection log back and returns the
// endpoints it names, used at startup to reconstruct the tracker's seen
// set. Row timestamps are not restored.
func (a *AuditLog) LoadSeen() []TrackedEndpoint {
	path := a.cfg.GetBrowserData().AuditFilePath

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read existing audit log")
		}
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse existing audit log")
		return nil
	}

	var out []TrackedEndpoint
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue // header or short row
		}
		port, err := strconv.Atoi(row[2])
		if err != nil {
			continue
		}
		out = append(out, TrackedEndpoint{IP: row[1], Port: port})
	}

	log.Info().Int("endpoints", len(out)).Str("path", path).Msg("previous connections loaded from audit log")
	return out
}

// forwardLoop posts queued entries to the audit API. Failures are logged
// and swallowed; this path never touches the response path.
func (a *AuditLog) forwardLoop() {
	defer a.forwardWG.Done()

	for entry := range a.forwardCh {
		url := a.cfg.GetBrowserData().AuditAPIURL
		if url == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), auditForwardTimeout)
		if err := connector.PostJSON(ctx, a.client, url, entry); err != nil {
			log.Debug().Err(err).Str("ip", entry.ClientIP).Msg("audit forward failed")
		}
		cancel()
	}
}

// QueueDepth returns the number of entries awaiting a flush.
func (a *AuditLog) QueueDepth() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Close stops accepting records, drains the forward worker, and flushes
// the remaining queue synchronously. Called during graceful shutdown.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.forwardCh != nil {
		close(a.forwardCh)
		a.forwardWG.Wait()
	}

	n, err := a.Flush()
	if err != nil {
		return fmt.Errorf("final audit flush failed with %d entries queued: %w", a.QueueDepth(), err)
	}
	if n > 0 {
		log.Info().Int("entries", n).Msg("final audit flush complete")
	}
	return nil
}
