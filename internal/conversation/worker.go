package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// Handler runs one dialogue turn. *Machine implements it.
type Handler interface {
	Handle(ctx context.Context, sessionID, text string) ([]string, error)
}

// Sender delivers a reply to the chat a session id points at.
type Sender interface {
	SendText(ctx context.Context, sessionID, text string) error
}

// WorkerRecorder receives per-message outcomes.
type WorkerRecorder interface {
	ObserveInbound(channel, outcome string)
	ObserveOutbound(channel, status string)
}

type processedEventStore interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Worker consumes inbound messages from the queue, runs them through the
// handler and sends the replies back on the originating channel.
type Worker struct {
	handler    Handler
	queue      queueClient
	sender     Sender
	processed  processedEventStore
	transcript *TranscriptStore
	recorder   WorkerRecorder
	logger     *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	handleTimeout    time.Duration
	processed        processedEventStore
	transcript       *TranscriptStore
	recorder         WorkerRecorder
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	defaultHandleTimeout = 30 * time.Second
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	sendTimeout          = 10 * time.Second
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithHandleTimeout bounds one dialogue turn, calendar calls included.
func WithHandleTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.handleTimeout = d
		}
	}
}

// WithProcessedEventsStore drops redelivered network messages by id.
func WithProcessedEventsStore(store processedEventStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithTranscriptStore records both sides of every chat.
func WithTranscriptStore(store *TranscriptStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.transcript = store
	}
}

func WithWorkerRecorder(r WorkerRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.recorder = r
	}
}

// NewWorker constructs a queue consumer around handler.
func NewWorker(handler Handler, queue queueClient, sender Sender, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if sender == nil {
		panic("conversation: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		handleTimeout:    defaultHandleTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		handler:    handler,
		queue:      queue,
		sender:     sender,
		processed:  cfg.processed,
		transcript: cfg.transcript,
		recorder:   cfg.recorder,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive inbound messages", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, qm queueMessage) {
	msg, err := decodeInbound(qm.Body)
	if err != nil {
		w.logger.Error("dropping undecodable inbound message", "error", err, "queue_message_id", qm.ID)
		w.observeInbound("unknown", "invalid")
		w.deleteMessage(qm.ReceiptHandle)
		return
	}
	channel := string(msg.Channel)
	log := w.logger.Session(msg.SessionID).With("channel", channel, "message_id", msg.MessageID)

	if w.seen(ctx, msg) {
		log.Info("skipping redelivered message")
		w.observeInbound(channel, "duplicate")
		w.deleteMessage(qm.ReceiptHandle)
		return
	}

	w.record(ctx, msg.SessionID, TranscriptEntry{Role: RoleCustomer, Channel: msg.Channel, Text: msg.Text, Timestamp: msg.ReceivedAt})

	hctx, cancel := context.WithTimeout(ctx, w.cfg.handleTimeout)
	replies, err := w.handler.Handle(hctx, msg.SessionID, msg.Text)
	cancel()
	outcome := "handled"
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; leave the message for redelivery.
			return
		}
		log.Error("turn failed", "error", err)
		outcome = "error"
		replies = []string{msgProcessingError}
	}
	w.observeInbound(channel, outcome)

	for _, text := range replies {
		if strings.TrimSpace(text) == "" {
			continue
		}
		sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := w.sender.SendText(sctx, msg.SessionID, text)
		cancel()
		status := "sent"
		if err != nil {
			log.Error("failed to send reply", "error", err)
			status = "failed"
		}
		w.observeOutbound(channel, status)
		w.record(ctx, msg.SessionID, TranscriptEntry{Role: RoleBot, Channel: msg.Channel, Text: text, Status: status})
	}

	w.markProcessed(ctx, msg)
	w.deleteMessage(qm.ReceiptHandle)
}

func (w *Worker) seen(ctx context.Context, msg InboundMessage) bool {
	if w.processed == nil || msg.MessageID == "" {
		return false
	}
	done, err := w.processed.AlreadyProcessed(ctx, string(msg.Channel), msg.MessageID)
	if err != nil {
		w.logger.Warn("processed lookup failed", "error", err, "message_id", msg.MessageID)
		return false
	}
	return done
}

func (w *Worker) markProcessed(ctx context.Context, msg InboundMessage) {
	if w.processed == nil || msg.MessageID == "" {
		return
	}
	if _, err := w.processed.MarkProcessed(ctx, string(msg.Channel), msg.MessageID); err != nil {
		w.logger.Warn("failed to mark message processed", "error", err, "message_id", msg.MessageID)
	}
}

func (w *Worker) record(ctx context.Context, sessionID string, entry TranscriptEntry) {
	if w.transcript == nil {
		return
	}
	if err := w.transcript.Append(ctx, sessionID, entry); err != nil {
		w.logger.Warn("failed to append transcript", "error", err, "session_id", sessionID)
	}
}

func (w *Worker) observeInbound(channel, outcome string) {
	if w.recorder != nil {
		w.recorder.ObserveInbound(channel, outcome)
	}
}

func (w *Worker) observeOutbound(channel, status string) {
	if w.recorder != nil {
		w.recorder.ObserveOutbound(channel, status)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete queue message", "error", err)
	}
}
