package rsvp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
)

// Outcome pairs both write results of one submission.
type Outcome struct {
	ID        string
	Primary   PrimaryResult
	Secondary SecondaryResult
}

// Options configures a Submitter.
type Options struct {
	Sheets *SheetsWriter
	Backup *BackupWriter
	// BackupTimeout bounds a detached backup write. Defaults to 20s.
	BackupTimeout time.Duration
	// Now is used for row timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Submitter writes each RSVP to the spreadsheet first and then to the
// backup store. The backup never starts before the spreadsheet attempt
// has finished, and its failure never fails the submission.
type Submitter struct {
	sheets        *SheetsWriter
	backup        *BackupWriter
	backupTimeout time.Duration
	now           func() time.Time
}

func NewSubmitter(opts Options) *Submitter {
	s := &Submitter{
		sheets:        opts.Sheets,
		backup:        opts.Backup,
		backupTimeout: opts.BackupTimeout,
		now:           opts.Now,
	}
	if s.backupTimeout <= 0 {
		s.backupTimeout = 20 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit runs both writes in order and waits for both.
func (s *Submitter) Submit(ctx context.Context, form Form) (Outcome, error) {
	id, f, primary, err := s.primary(ctx, form)
	if err != nil {
		return Outcome{}, err
	}
	secondary := s.secondary(ctx, id, f)
	return Outcome{ID: id, Primary: primary, Secondary: secondary}, nil
}

// Dispatch awaits the spreadsheet write and starts the backup in the
// background on a context detached from ctx. The returned channel yields
// exactly one SecondaryResult and is then closed.
func (s *Submitter) Dispatch(ctx context.Context, form Form) (string, PrimaryResult, <-chan SecondaryResult, error) {
	id, f, primary, err := s.primary(ctx, form)
	if err != nil {
		return "", PrimaryResult{}, nil, err
	}

	done := make(chan SecondaryResult, 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- s.secondary(bg, id, f)
	}()
	return id, primary, done, nil
}

func (s *Submitter) primary(ctx context.Context, form Form) (string, Form, PrimaryResult, error) {
	if err := form.Validate(); err != nil {
		return "", Form{}, PrimaryResult{}, err
	}
	f := form.Normalize()
	id := uuid.NewString()

	res := s.sheets.Write(ctx, f.Record(s.now()))
	metrics.RSVPWrites.WithLabelValues("sheets", res.Status).Inc()
	if res.Err != nil {
		appLog.Error("rsvp sheets write failed", res.Err, "submission", id)
	} else {
		appLog.Info("rsvp sheets write", "submission", id, "status", res.Status)
	}
	return id, f, res, nil
}

func (s *Submitter) secondary(ctx context.Context, id string, f Form) SecondaryResult {
	ctx, cancel := context.WithTimeout(ctx, s.backupTimeout)
	defer cancel()

	res := s.writeBackup(ctx, f)
	switch {
	case res.Skipped:
		metrics.RSVPWrites.WithLabelValues("backup", StatusSkipped).Inc()
		appLog.Debug("rsvp backup skipped", "submission", id)
	case res.Err != nil:
		metrics.RSVPWrites.WithLabelValues("backup", StatusFailed).Inc()
		appLog.Error("rsvp backup write failed", res.Err, "submission", id)
	default:
		metrics.RSVPWrites.WithLabelValues("backup", "stored").Inc()
		appLog.Info("rsvp backup stored", "submission", id, "doc", res.DocID)
	}
	return res
}

// writeBackup turns a panicking document store into a failed result.
func (s *Submitter) writeBackup(ctx context.Context, f Form) (res SecondaryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SecondaryResult{Err: fmt.Errorf("rsvp: backup panicked: %v", r)}
		}
	}()
	return s.backup.Write(ctx, f)
}
