package persist

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReportSaver stores a batch of reports. *ReportRepo implements it.
type ReportSaver interface {
	SaveBatch(ctx context.Context, reports []WorldReport) error
}

// ReportWriter moves report writes off the game loop. Record never blocks:
// when the queue is full the report is dropped and counted.
type ReportWriter struct {
	saver   ReportSaver
	log     *zap.Logger
	queue   chan WorldReport
	done    chan struct{}
	timeout time.Duration
	dropped int
}

func NewReportWriter(saver ReportSaver, log *zap.Logger, queueSize int) *ReportWriter {
	w := &ReportWriter{
		saver:   saver,
		log:     log,
		queue:   make(chan WorldReport, max(queueSize, 1)),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
	go w.loop()
	return w
}

// Record queues r for the background writer. Game loop only.
func (w *ReportWriter) Record(r WorldReport) {
	select {
	case w.queue <- r:
	default:
		w.dropped++
		w.log.Warn("report queue full, dropping report", zap.Uint64("tick", r.Tick), zap.Int("dropped", w.dropped))
	}
}

// Close flushes queued reports and stops the writer.
func (w *ReportWriter) Close() {
	close(w.queue)
	<-w.done
}

func (w *ReportWriter) loop() {
	defer close(w.done)
	for r := range w.queue {
		batch := []WorldReport{r}
	drain:
		for {
			select {
			case next, ok := <-w.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		w.save(batch)
	}
}

func (w *ReportWriter) save(batch []WorldReport) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.saver.SaveBatch(ctx, batch); err != nil {
		w.log.Error("save reports", zap.Int("reports", len(batch)), zap.Error(err))
		return
	}
	w.log.Debug("saved reports", zap.Int("reports", len(batch)))
}
