package process

import (
	"context"
	"strconv"
	"time"

	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/ratelimit"
	"ewintr.nl/ytstats/retry"
	"ewintr.nl/ytstats/storage"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

type UpdateOptions struct {
	UpdateTitle  bool
	SetThumbnail bool
}

// Plan joins references with the metadata found for their video. References
// whose video was not returned get no plan.
func Plan(refs []model.VideoReference, mds []model.VideoMetadata, logger *slog.Logger) []model.UpdatePlan {
	byID := make(map[model.VideoID]model.VideoMetadata, len(mds))
	for _, md := range mds {
		byID[md.ID] = md
	}

	plans := make([]model.UpdatePlan, 0, len(refs))
	for _, ref := range refs {
		md, ok := byID[ref.VideoID]
		if !ok {
			logger.Warn("video not found, skipping record", slog.String("record", ref.RecordID), slog.String("video", string(ref.VideoID)))
			continue
		}
		plans = append(plans, model.UpdatePlan{Reference: ref, Metadata: md})
	}

	return plans
}

// ParseCount turns a count as reported by the API into a number. Anything
// that is not a non-negative integer counts as zero.
func ParseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type Updater struct {
	repo    storage.RecordRepository
	limiter *ratelimit.Limiter
	retry   retry.Config
	fields  model.FieldMap
	opts    UpdateOptions
	logger  *slog.Logger
}

func NewUpdater(repo storage.RecordRepository, limiter *ratelimit.Limiter, retryCfg retry.Config, fields model.FieldMap, opts UpdateOptions, logger *slog.Logger) *Updater {
	return &Updater{
		repo:    repo,
		limiter: limiter,
		retry:   retryCfg,
		fields:  fields,
		opts:    opts,
		logger:  logger,
	}
}

// Payload builds the write for one plan. Only mapped properties are part
// of it.
func (u *Updater) Payload(plan model.UpdatePlan) storage.Update {
	md := plan.Metadata
	props := map[string]any{
		u.fields.Views.Name: storage.NumberProperty(ParseCount(md.ViewCount)),
	}
	if u.fields.Likes.IsSet() {
		props[u.fields.Likes.Name] = storage.NumberProperty(ParseCount(md.LikeCount))
	}
	if u.fields.Comments.IsSet() {
		props[u.fields.Comments.Name] = storage.NumberProperty(ParseCount(md.CommentCount))
	}
	if u.fields.Published.IsSet() && md.PublishedAt != "" {
		props[u.fields.Published.Name] = storage.DateProperty(md.PublishedAt)
	}
	if u.opts.UpdateTitle && u.fields.Title.IsSet() && md.Title != "" {
		props[u.fields.Title.Name] = storage.TextProperty(u.fields.Title.Kind, md.Title)
	}

	update := storage.Update{Properties: props}
	if u.opts.SetThumbnail {
		if thumb, ok := md.Thumbnail(); ok {
			update.CoverURL = thumb
		}
	}

	return update
}

// Apply writes all plans and returns the ids of the records that were
// updated, in plan order. A record that cannot be written does not stop
// the others; its error is returned in failed.
func (u *Updater) Apply(ctx context.Context, plans []model.UpdatePlan) ([]string, map[string]error) {
	errs := make([]error, len(plans))

	var g errgroup.Group
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			errs[i] = u.write(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()

	updated := make([]string, 0, len(plans))
	failed := map[string]error{}
	for i, plan := range plans {
		recordID := plan.Reference.RecordID
		if errs[i] != nil {
			u.logger.Error("failed to update record", slog.String("record", recordID), slog.String("video", string(plan.Reference.VideoID)), slog.String("error", errs[i].Error()))
			failed[recordID] = errs[i]
			continue
		}
		updated = append(updated, recordID)
	}

	u.logger.Info("updated records", slog.Int("count", len(updated)), slog.Int("failed", len(failed)))
	return updated, failed
}

func (u *Updater) write(ctx context.Context, plan model.UpdatePlan) error {
	recordID := plan.Reference.RecordID
	job := ratelimit.Job{ID: recordID, Kind: "update"}
	update := u.Payload(plan)

	hook := func(attempt int, err error, wait time.Duration) {
		u.logger.Warn("retrying record update", slog.String("record", recordID), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))
	}

	return u.limiter.Schedule(ctx, job, func(ctx context.Context) error {
		return retry.Do(ctx, u.retry, storage.IsTransient, hook, func(ctx context.Context) error {
			return u.repo.Update(ctx, recordID, update)
		})
	})
}
