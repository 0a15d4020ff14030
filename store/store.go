package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"affiliate-redirector/model"
	"affiliate-redirector/utils"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	linkKeyPrefix      = "link:"        // JSON AffiliateLink per slug
	clicksKeyPrefix    = "link_clicks:" // atomic per-link click counter
	eventsKeyPrefix    = "clickevents:" // list of ClickEvent JSON per link id
	partnerKeyPrefix   = "partner:"     // JSON AffiliatePartner per id
	ipTimelinePrefix   = "clicks_by_ip:"
	duplicateKeyPrefix = "clickdedup:"
	partnerUserIndex   = "partner_user_index" // hash userID -> partnerID

	// IP timelines only need to answer "how many counted clicks in the
	// trailing hour"; keep a little slack beyond that and let keys expire.
	ipTimelineRetention = 2 * time.Hour
)

var ErrNotFound = errors.New("record not found")

// Store is the persistence layer for links, partners and click events,
// backed by Redis. All methods take the caller's context; no state lives in
// the process between requests.
type Store struct {
	rdb       *redis.Client
	maxEvents int64
}

// New creates a Store. maxEventsPerLink bounds the per-link click-event
// list; older rows are trimmed away once the cap is reached.
func New(rdb *redis.Client, maxEventsPerLink int) *Store {
	return &Store{
		rdb:       rdb,
		maxEvents: int64(maxEventsPerLink),
	}
}

// Ping reports store reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SaveLink persists a link record keyed by its slug.
func (s *Store) SaveLink(ctx context.Context, link model.AffiliateLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, linkKeyPrefix+link.Slug, data, 0).Err()
}

// LinkBySlug looks up a link record and fills in its current click count.
// Returns ErrNotFound when the slug has no record.
func (s *Store) LinkBySlug(ctx context.Context, slug string) (model.AffiliateLink, error) {
	var link model.AffiliateLink

	data, err := s.rdb.Get(ctx, linkKeyPrefix+slug).Bytes()
	if err == redis.Nil {
		return link, ErrNotFound
	} else if err != nil {
		return link, err
	}

	if err := json.Unmarshal(data, &link); err != nil {
		return link, err
	}

	count, err := s.ClickCount(ctx, link.ID)
	if err != nil {
		// The counter is advisory on reads; a missing count must not turn
		// a resolvable link into a 500.
		log.Error().Err(err).Str("slug", slug).Msg("Failed to read click counter")
	} else {
		link.Clicks = count
	}

	return link, nil
}

// SlugExists reports whether a slug already has a link record.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.rdb.Exists(ctx, linkKeyPrefix+slug).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementClicks atomically bumps a link's click counter and returns the
// new value. INCR is used deliberately: a read-modify-write here would drop
// counts under concurrent hits on the same link.
func (s *Store) IncrementClicks(ctx context.Context, linkID string) (int64, error) {
	return s.rdb.Incr(ctx, clicksKeyPrefix+linkID).Result()
}

// ClickCount returns the current counter value for a link (0 when it has
// never been clicked).
func (s *Store) ClickCount(ctx context.Context, linkID string) (int64, error) {
	count, err := s.rdb.Get(ctx, clicksKeyPrefix+linkID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// RecordClick appends an immutable ClickEvent row and registers the click on
// the requesting IP's timeline used by the rate window.
func (s *Store) RecordClick(ctx context.Context, event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	eventsKey := eventsKeyPrefix + event.LinkID
	if err := s.rdb.RPush(ctx, eventsKey, data).Err(); err != nil {
		return err
	}
	if s.maxEvents > 0 {
		if err := s.rdb.LTrim(ctx, eventsKey, -s.maxEvents, -1).Err(); err != nil {
			log.Error().Err(err).Str("link_id", event.LinkID).Msg("Failed to trim click event list")
		}
	}

	timelineKey := ipTimelinePrefix + event.IP
	now := event.OccurredAt
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, timelineKey, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: event.ID,
	})
	pipe.ZRemRangeByScore(ctx, timelineKey, "0", formatMillis(now.Add(-ipTimelineRetention)))
	pipe.Expire(ctx, timelineKey, ipTimelineRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return nil
}

// ClicksFromIP counts the clicks recorded for an IP inside the trailing
// window.
func (s *Store) ClicksFromIP(ctx context.Context, ip string, window time.Duration) (int64, error) {
	now := time.Now()
	return s.rdb.ZCount(ctx,
		ipTimelinePrefix+ip,
		formatMillis(now.Add(-window)),
		formatMillis(now),
	).Result()
}

// MarkSeen records a (ip, user-agent, link) click fingerprint with the given
// TTL. It returns true when the fingerprint is fresh, false when the same
// triple already clicked inside the window (a reload or double-fire).
func (s *Store) MarkSeen(ctx context.Context, ip, userAgent, linkID string, window time.Duration) (bool, error) {
	key := duplicateKeyPrefix + utils.Fingerprint(ip, userAgent, linkID)
	return s.rdb.SetNX(ctx, key, 1, window).Result()
}

// RecentClicks returns up to n of the latest click events for a link, newest
// last.
func (s *Store) RecentClicks(ctx context.Context, linkID string, n int64) ([]model.ClickEvent, error) {
	rows, err := s.rdb.LRange(ctx, eventsKeyPrefix+linkID, -n, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]model.ClickEvent, 0, len(rows))
	for _, row := range rows {
		var event model.ClickEvent
		if err := json.Unmarshal([]byte(row), &event); err != nil {
			log.Error().Err(err).Str("link_id", linkID).Msg("Skipping unreadable click event row")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// SavePartner persists a partner record and indexes it by owning user.
func (s *Store) SavePartner(ctx context.Context, partner model.AffiliatePartner) error {
	data, err := json.Marshal(partner)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, partnerKeyPrefix+partner.ID, data, 0).Err(); err != nil {
		return err
	}
	return s.rdb.HSet(ctx, partnerUserIndex, partner.UserID, partner.ID).Err()
}

// PartnerByID looks up a partner record. Returns ErrNotFound for unknown ids.
func (s *Store) PartnerByID(ctx context.Context, id string) (model.AffiliatePartner, error) {
	var partner model.AffiliatePartner

	data, err := s.rdb.Get(ctx, partnerKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return partner, ErrNotFound
	} else if err != nil {
		return partner, err
	}

	if err := json.Unmarshal(data, &partner); err != nil {
		return partner, err
	}
	return partner, nil
}

// PartnerByUserID resolves the partner account owned by a user, if any.
func (s *Store) PartnerByUserID(ctx context.Context, userID string) (model.AffiliatePartner, error) {
	id, err := s.rdb.HGet(ctx, partnerUserIndex, userID).Result()
	if err == redis.Nil {
		return model.AffiliatePartner{}, ErrNotFound
	} else if err != nil {
		return model.AffiliatePartner{}, err
	}
	return s.PartnerByID(ctx, id)
}

// formatMillis renders a ZCount/ZRemRangeByScore boundary; scores on the IP
// timelines are unix milliseconds.
func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
