package models

// OrgCategory partitions the org set returned by a single listing.
type OrgCategory string

const (
	CategoryHub      OrgCategory = "hub"
	CategorySandbox  OrgCategory = "sandbox"
	CategoryScratch  OrgCategory = "scratch"
	CategoryStandard OrgCategory = "standard"
	CategoryOther    OrgCategory = "other"
)

// OrgContext represents one logical remote environment.
type OrgContext struct {
	Alias    string      `json:"alias,omitempty"`
	Username string      `json:"username"`
	Default  bool        `json:"default"`
	Category OrgCategory `json:"category"`
	Status   string      `json:"status"`
}

// Key returns the alias, falling back to the username.
func (o OrgContext) Key() string {
	if o.Alias != "" {
		return o.Alias
	}

	return o.Username
}

// OrgList is the categorized org set. Every org appears in exactly one list.
type OrgList struct {
	Hubs      []OrgContext `json:"hubs"`
	Sandboxes []OrgContext `json:"sandboxes"`
	Scratch   []OrgContext `json:"scratch"`
	Standard  []OrgContext `json:"standard"`
	Other     []OrgContext `json:"other"`
}

// All returns every org across categories.
func (l *OrgList) All() []OrgContext {
	if l == nil {
		return nil
	}

	all := make([]OrgContext, 0, len(l.Hubs)+len(l.Sandboxes)+len(l.Scratch)+len(l.Standard)+len(l.Other))
	all = append(all, l.Hubs...)
	all = append(all, l.Sandboxes...)
	all = append(all, l.Scratch...)
	all = append(all, l.Standard...)
	all = append(all, l.Other...)

	return all
}

// Default returns the org flagged as default, if any.
func (l *OrgList) Default() (OrgContext, bool) {
	for _, o := range l.All() {
		if o.Default {
			return o, true
		}
	}

	return OrgContext{}, false
}

// Add appends org to the list matching its category.
func (l *OrgList) Add(o OrgContext) {
	switch o.Category {
	case CategoryHub:
		l.Hubs = append(l.Hubs, o)
	case CategorySandbox:
		l.Sandboxes = append(l.Sandboxes, o)
	case CategoryScratch:
		l.Scratch = append(l.Scratch, o)
	case CategoryStandard:
		l.Standard = append(l.Standard, o)
	default:
		l.Other = append(l.Other, o)
	}
}

// TestClass is a class containing test methods.
type TestClass struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}
