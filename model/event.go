package model

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	EventAdaptation = "Adaptation"
	EventShock      = "Shock"
)

// EventRecord is a notable change of a single household.
type EventRecord struct {
	Type    string `msgpack:"type"`
	AgentID int64  `msgpack:"agent_id"`
	Step    int    `msgpack:"step"`
	Body    any    `msgpack:"body"`
}

type AdaptationEventBody struct {
	Opinion float64 `msgpack:"opinion"`
	Savings float64 `msgpack:"savings"`
	Cost    float64 `msgpack:"cost"`
}

type ShockEventBody struct {
	Depth  float64 `msgpack:"depth"`
	Damage float64 `msgpack:"damage"`
}

// EventLogger appends events to a msgpack stream in batches
type EventLogger struct {
	Filename  string
	BatchSize int
	queue     chan *EventRecord
	stopFlag  chan struct{}
	wg        sync.WaitGroup
	lock      sync.Mutex
	stopped   bool
	file      *os.File
	err       error
}

// NewEventLogger creates a new event logger. An existing file is truncated.
func NewEventLogger(filename string, batchSize int) (*EventLogger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	batchSize = max(batchSize, 1)
	logger := &EventLogger{
		Filename:  filename,
		BatchSize: batchSize,
		queue:     make(chan *EventRecord, batchSize*2),
		stopFlag:  make(chan struct{}),
		file:      file,
	}

	logger.wg.Add(1)
	go logger.worker()

	return logger, nil
}

// LogEvent adds an event to the queue for logging
func (l *EventLogger) LogEvent(event *EventRecord) {
	select {
	case l.queue <- event:
		// Event queued successfully
	case <-l.stopFlag:
		// Logger is stopping, discard event
	}
}

// worker processes the event queue
func (l *EventLogger) worker() {
	defer l.wg.Done()

	batch := make([]*EventRecord, 0, l.BatchSize)

	for {
		select {
		case event := <-l.queue:
			batch = append(batch, event)

			if len(batch) >= l.BatchSize {
				l.writeBatch(batch)
				batch = batch[:0]
			}

		case <-l.stopFlag:
			// drain whatever is still queued
			for {
				select {
				case event := <-l.queue:
					batch = append(batch, event)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				l.writeBatch(batch)
			}
			return
		}
	}
}

// writeBatch writes a batch of events to the file
func (l *EventLogger) writeBatch(batch []*EventRecord) {
	l.lock.Lock()
	defer l.lock.Unlock()

	enc := msgpack.NewEncoder(l.file)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			l.err = errors.Join(l.err, err)
		}
	}

	if err := l.file.Sync(); err != nil {
		l.err = errors.Join(l.err, err)
	}
}

// Stop flushes pending events and closes the file. It returns the first
// write errors met while logging.
func (l *EventLogger) Stop() error {
	l.lock.Lock()
	if l.stopped {
		l.lock.Unlock()
		return l.err
	}
	l.stopped = true

	// Signal worker to stop
	close(l.stopFlag)
	l.lock.Unlock()

	// Wait for worker to finish
	l.wg.Wait()

	// Close the file
	l.lock.Lock()
	defer l.lock.Unlock()
	return errors.Join(l.err, l.file.Close())
}

// ReadEventRecords reads all events of a msgpack event stream. Bodies are
// decoded as generic maps.
func ReadEventRecords(filename string) ([]*EventRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []*EventRecord
	decoder := msgpack.NewDecoder(file)

	for {
		event := &EventRecord{}
		err := decoder.Decode(event)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}

	return events, nil
}
