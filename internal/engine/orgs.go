package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/cache"
	"github.com/Norgate-AV/alv/internal/models"
)

// OrgsResult is the org list along with where it came from
type OrgsResult struct {
	Orgs       *models.OrgList `json:"orgs,omitempty"`
	Cached     bool            `json:"cached"`
	CapturedAt int64           `json:"captured_at,omitempty"`

	// Skipped is set when another refresh was already running
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message,omitempty"`
}

// Orgs returns the categorized org list, using the cached snapshot while it is
// younger than the org list TTL.
func (e *Engine) Orgs(ctx context.Context) (OrgsResult, error) {
	if snap, ok := e.store.OrgSnapshot(cache.OrgListTTL); ok {
		orgs := snap.Orgs
		return OrgsResult{Orgs: &orgs, Cached: true, CapturedAt: snap.Timestamp}, nil
	}

	return e.RefreshOrgs(ctx)
}

// RefreshOrgs lists the orgs from the tool and replaces the snapshot. A refresh
// requested while another is running returns immediately with Skipped set.
func (e *Engine) RefreshOrgs(ctx context.Context) (OrgsResult, error) {
	var result OrgsResult

	outcome, err := e.orgRefresh.Run(ctx, func(ctx context.Context) error {
		list, err := e.client.ListOrgs(ctx)
		if err != nil {
			return err
		}

		result.Orgs = list

		snap, err := e.store.PutOrgSnapshot(*list)
		if err != nil {
			e.logger.Warn("Failed to cache org list", zap.Error(err))
			return nil
		}

		result.CapturedAt = snap.Timestamp

		return nil
	})
	if err != nil {
		return OrgsResult{}, err
	}

	if outcome.Skipped {
		return OrgsResult{Skipped: true, Message: outcome.Message}, nil
	}

	e.logger.Info("Refreshed org list", zap.Int("orgs", len(result.Orgs.All())))

	return result, nil
}

// SelectOrg makes alias the tool's default org and records the choice
func (e *Engine) SelectOrg(ctx context.Context, alias string) (models.OrgContext, error) {
	if alias == "" {
		return models.OrgContext{}, fmt.Errorf("org alias is required")
	}

	if err := e.client.SetDefaultOrg(ctx, alias); err != nil {
		return models.OrgContext{}, err
	}

	org := models.OrgContext{Alias: alias}
	if snap, ok := e.store.OrgSnapshot(cache.OrgListTTL); ok {
		for _, o := range snap.Orgs.All() {
			if o.Alias == alias || o.Username == alias {
				org = o
				break
			}
		}
	}

	org.Default = true

	if _, err := e.store.Put(alias, cache.WithSelectedOrg(org, e.now())); err != nil {
		e.logger.Warn("Failed to record selected org", zap.String("org", alias), zap.Error(err))
	}

	return org, nil
}
