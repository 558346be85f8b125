package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditBatchSize = 100

// auditStore is the persistence the audit service needs.
type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error
	GetAuditLogsPaginated(
		ctx context.Context,
		params store.PaginationParams,
		filters store.AuditLogFilters,
	) ([]models.AuditLog, store.PaginationResult, error)
	DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditLogEntry represents the data needed to create an audit log entry
type AuditLogEntry struct {
	EventType    models.EventType
	Severity     models.EventSeverity
	SubjectID    string
	ActorIP      string
	ClientID     string
	ResourceType models.ResourceType
	ResourceID   string
	Action       string
	Details      models.AuditDetails
	Success      bool
	ErrorMessage string
}

// AuditService records who did what to whose data. Writes are buffered and
// flushed in batches by a single worker; LogSync bypasses the buffer.
type AuditService struct {
	store   auditStore
	enabled bool
	log     *zap.Logger

	logChan chan *models.AuditLog

	batchMu     sync.Mutex
	batch       []*models.AuditLog
	batchTicker *time.Ticker

	wg         sync.WaitGroup
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewAuditService creates the service and starts its worker when enabled.
func NewAuditService(s auditStore, enabled bool, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	svc := &AuditService{
		store:       s,
		enabled:     enabled,
		log:         logger.Named("audit"),
		logChan:     make(chan *models.AuditLog, bufferSize),
		batch:       make([]*models.AuditLog, 0, auditBatchSize),
		batchTicker: time.NewTicker(time.Second),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		svc.wg.Add(1)
		go svc.worker()
		svc.log.Info("audit service started", zap.Int("buffer_size", bufferSize))
	} else {
		svc.batchTicker.Stop()
		svc.log.Info("audit service disabled")
	}
	return svc
}

func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)
		case <-s.batchTicker.C:
			s.flush()
		case <-s.shutdownCh:
			// Drain what producers managed to enqueue before shutdown.
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flush()
					return
				}
			}
		}
	}
}

func (s *AuditService) addToBatch(entry *models.AuditLog) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, entry)
	if len(s.batch) >= auditBatchSize {
		s.flushLocked()
	}
}

func (s *AuditService) flush() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked()
}

// flushLocked writes the pending batch. Caller must hold batchMu.
func (s *AuditService) flushLocked() {
	if len(s.batch) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batch))
	copy(toWrite, s.batch)
	s.batch = s.batch[:0]

	if err := s.store.CreateAuditLogBatch(context.Background(), toWrite); err != nil {
		s.log.Error("failed to write audit log batch", logger.Count(len(toWrite)), logger.Err(err))
	}
}

// Log records an entry asynchronously. When the buffer is full the entry
// is dropped with a warning rather than blocking the request.
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	if !s.enabled {
		return
	}

	select {
	case s.logChan <- s.build(ctx, entry):
	default:
		s.log.Warn("audit buffer full, dropping event",
			zap.String("event_type", string(entry.EventType)),
			zap.String("action", entry.Action),
		)
	}
}

// LogSync writes an entry immediately, for callers that may exit before the
// worker flushes, such as registry seeding from the CLI. It opens its own
// store call, so code running inside a store transaction must use Log.
func (s *AuditService) LogSync(ctx context.Context, entry AuditLogEntry) error {
	if !s.enabled {
		return nil
	}
	return s.store.CreateAuditLog(ctx, s.build(ctx, entry))
}

func (s *AuditService) build(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.ActorIP == "" {
		entry.ActorIP = util.GetIPFromContext(ctx)
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}
	method, path := util.GetRequestInfoFromContext(ctx)
	now := time.Now()

	return &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		SubjectID:     entry.SubjectID,
		ActorIP:       entry.ActorIP,
		ClientID:      entry.ClientID,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		UserAgent:     util.GetUserAgentFromContext(ctx),
		RequestPath:   path,
		RequestMethod: method,
		CreatedAt:     now,
	}
}

// History returns a subject's audit trail, newest first.
func (s *AuditService) History(
	ctx context.Context,
	subjectID string,
	params store.PaginationParams,
) ([]models.AuditLog, store.PaginationResult, error) {
	return s.store.GetAuditLogsPaginated(ctx, params, store.AuditLogFilters{SubjectID: subjectID})
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOldAuditLogs(ctx, time.Now().Add(-retention))
}

// Shutdown stops the worker after flushing buffered entries.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	s.closeOnce.Do(func() {
		s.batchTicker.Stop()
		close(s.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskIdentifier keeps the head and tail of a long identifier.
func maskIdentifier(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-4:]
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return nil
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		switch {
		case isSensitiveField(key):
			masked[key] = "***REDACTED***"
		case isPartialMaskField(key):
			if str, ok := value.(string); ok {
				masked[key] = maskIdentifier(str)
			} else {
				masked[key] = value
			}
		default:
			masked[key] = value
		}
	}
	return masked
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, field := range []string{"secret", "password", "access_token", "bearer", "authorization"} {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "request_id") || key == "jti"
}
