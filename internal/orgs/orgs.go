// Package orgs turns the tool's org listing into a categorized OrgList.
package orgs

import (
	"encoding/json"
	"strings"

	"github.com/Norgate-AV/alv/internal/envelope"
	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/models"
)

// AcceptedStatuses are the connectivity states kept in a listing.
var AcceptedStatuses = []string{"active", "connected", "connected-ephemeral"}

type rawOrg struct {
	Alias                   string `json:"alias"`
	Username                string `json:"username"`
	IsDefaultUsername       bool   `json:"isDefaultUsername"`
	IsDefaultDevHubUsername bool   `json:"isDefaultDevHubUsername"`
	IsDevHub                bool   `json:"isDevHub"`
	IsSandbox               bool   `json:"isSandbox"`
	IsScratch               bool   `json:"isScratch"`
	ConnectedStatus         string `json:"connectedStatus"`
	Status                  string `json:"status"`
	DefaultMarker           string `json:"defaultMarker"`
}

type rawListing struct {
	DevHubs        []rawOrg `json:"devHubs"`
	ScratchOrgs    []rawOrg `json:"scratchOrgs"`
	Sandboxes      []rawOrg `json:"sandboxes"`
	NonScratchOrgs []rawOrg `json:"nonScratchOrgs"`
	Other          []rawOrg `json:"other"`
}

// Categorize parses a listing and partitions it. Each org lands in exactly one
// category, decided by priority hub > scratch > sandbox > standard > other. Orgs
// whose connectivity status is not accepted are dropped from every category.
func Categorize(raw string) (*models.OrgList, error) {
	doc := envelope.Parse(raw)
	if !doc.Structured() {
		return nil, errs.New(errs.MalformedResponse, "list orgs", "org listing is not JSON", nil)
	}

	type group struct {
		hint models.OrgCategory
		orgs []rawOrg
	}

	var groups []group

	var listing rawListing
	if err := doc.DecodeResult(&listing); err == nil {
		groups = []group{
			{models.CategoryHub, listing.DevHubs},
			{models.CategoryScratch, listing.ScratchOrgs},
			{models.CategorySandbox, listing.Sandboxes},
			{models.CategoryStandard, listing.NonScratchOrgs},
			{models.CategoryOther, listing.Other},
		}
	} else {
		records, _ := doc.Records("orgs")
		flat := make([]rawOrg, 0, len(records))
		for _, r := range records {
			var o rawOrg
			if json.Unmarshal(r, &o) == nil {
				flat = append(flat, o)
			}
		}

		groups = []group{{models.CategoryOther, flat}}
	}

	list := &models.OrgList{}
	seen := make(map[string]bool)

	for _, g := range groups {
		for _, o := range g.orgs {
			key := o.Username
			if key == "" {
				key = o.Alias
			}

			if key == "" || seen[key] {
				continue
			}

			status := EffectiveStatus(o.ConnectedStatus, o.Status)
			if !Accepted(status) {
				continue
			}

			seen[key] = true
			list.Add(models.OrgContext{
				Alias:    o.Alias,
				Username: o.Username,
				Default:  o.IsDefaultUsername || strings.Contains(o.DefaultMarker, "(U)"),
				Category: category(o, g.hint),
				Status:   status,
			})
		}
	}

	return list, nil
}

func category(o rawOrg, hint models.OrgCategory) models.OrgCategory {
	switch {
	case o.IsDevHub || o.IsDefaultDevHubUsername || hint == models.CategoryHub:
		return models.CategoryHub
	case o.IsScratch || hint == models.CategoryScratch:
		return models.CategoryScratch
	case o.IsSandbox || hint == models.CategorySandbox:
		return models.CategorySandbox
	case hint == models.CategoryStandard:
		return models.CategoryStandard
	default:
		return models.CategoryOther
	}
}

// EffectiveStatus prefers connectedStatus and falls back to status when the
// former is missing or "Unknown" (scratch orgs only report status).
func EffectiveStatus(connected, status string) string {
	if connected == "" || (strings.EqualFold(connected, "unknown") && status != "") {
		return status
	}

	return connected
}

// Accepted reports whether status is an accepted connectivity state.
func Accepted(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, a := range AcceptedStatuses {
		if s == a {
			return true
		}
	}

	return false
}
