package storage

import (
	"context"
	"time"

	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/logutils"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Sweeper deletes uploads that no project references any more. Images
// replaced by a project update, or left behind by a deleted project, are
// otherwise kept forever.
type Sweeper struct {
	uploads *Uploads
	db      *gorm.DB
	grace   time.Duration
	now     func() time.Time
}

func NewSweeper(uploads *Uploads, db *gorm.DB, grace time.Duration) *Sweeper {
	return &Sweeper{uploads: uploads, db: db, grace: grace, now: time.Now}
}

// Sweep removes unreferenced files last modified before now-grace. Younger
// files may belong to a project write that has not committed yet.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	refs, err := query.ReferencedImages(ctx, s.db)
	if err != nil {
		return 0, err
	}
	files, err := s.uploads.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.grace).Unix()
	removed := 0
	for _, f := range files {
		if _, ok := refs[f.Path]; ok || f.ModTime > cutoff {
			continue
		}
		if err := s.uploads.Remove(ctx, f.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Start schedules Sweep with a cron spec such as "@daily" or "0 3 * * *".
// The returned cron must be stopped by the caller.
func (s *Sweeper) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed, err := s.Sweep(context.Background())
		if err != nil {
			logutils.Log.Error("sweep uploads: ", err)
			return
		}
		if removed > 0 {
			logutils.Log.WithField("removed", removed).Info("orphaned uploads removed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
