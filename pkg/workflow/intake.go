package workflow

import (
	"reelsweep/pkg/ledger"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

// Intake deduplicates candidate reels against the identity cache
// before they reach the ledger. Used for links arriving outside the
// collector: backup replays and manually supplied lists.
type Intake struct {
	cache *ledger.IdentityCache
	log   logger.Logger
}

// NewIntake builds an Intake over cache.
func NewIntake(cache *ledger.IdentityCache, log logger.Logger) *Intake {
	if log == nil {
		log = logger.NewNop()
	}
	return &Intake{cache: cache, log: log}
}

// Filter returns the reels not already known, inserting each accepted
// ID into the cache immediately so a duplicate later in the same
// slice is also caught. Sentinel IDs always pass and are never
// inserted.
func (i *Intake) Filter(candidates []models.Reel) (fresh []models.Reel, duplicates int) {
	for _, r := range candidates {
		if r.HasSentinelID() {
			fresh = append(fresh, r)
			continue
		}
		if i.cache.Exists(r.ID) {
			duplicates++
			continue
		}
		i.cache.Add(r.ID)
		fresh = append(fresh, r)
	}
	if duplicates > 0 {
		i.log.WithFields(map[string]interface{}{
			"fresh":      len(fresh),
			"duplicates": duplicates,
		}).Info("intake filtered duplicate reels")
	}
	return fresh, duplicates
}
