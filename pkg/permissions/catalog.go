package permissions

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Page identifies a functional area; it is a row of the matrix.
type Page string

// Action identifies an operation; it is a column of the matrix.
type Action string

const (
	PagePermissions    Page = "Permissions"
	PageDashboard      Page = "Dashboard"
	PageCompanies      Page = "Companies"
	PageUsers          Page = "Users"
	PageProjects       Page = "Projects"
	PageTickets        Page = "Tickets"
	PageTicketDetails  Page = "TicketDetails"
	PagePurchaseOrders Page = "PurchaseOrders"
	PageInvoices       Page = "Invoices"
)

const (
	ActionView         Action = "view"
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionStatusChange Action = "status_change"
	ActionAssign       Action = "assign"
	ActionResponse     Action = "response"
	ActionReopen       Action = "reopen"
	ActionRootCause    Action = "rootCause"
	ActionLocation     Action = "location"
	ActionLink         Action = "link"
)

//go:embed catalog.yaml
var catalogYAML []byte

// PageDef describes one matrix row.
type PageDef struct {
	Key   Page   `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// ActionDef describes one matrix column and the pages it applies to. An
// empty ApplicableTo means every page.
type ActionDef struct {
	Key          Action `yaml:"key" json:"key"`
	Label        string `yaml:"label" json:"label"`
	ApplicableTo []Page `yaml:"applicableTo,omitempty" json:"applicableTo,omitempty"`
}

// Catalog is the static applicability table.
type Catalog struct {
	Pages   []PageDef   `yaml:"pages" json:"pages"`
	Actions []ActionDef `yaml:"actions" json:"actions"`

	applicable map[Page]map[Action]bool
}

// ParseCatalog decodes and indexes a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

var defaultCatalog = mustDefaultCatalog()

func mustDefaultCatalog() *Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func (c *Catalog) index() error {
	pages := make(map[Page]bool, len(c.Pages))
	for _, p := range c.Pages {
		if p.Key == "" {
			return fmt.Errorf("permission catalog: page with empty key")
		}
		if pages[p.Key] {
			return fmt.Errorf("permission catalog: duplicate page %q", p.Key)
		}
		pages[p.Key] = true
	}

	c.applicable = make(map[Page]map[Action]bool, len(c.Pages))
	for _, p := range c.Pages {
		c.applicable[p.Key] = make(map[Action]bool)
	}

	seen := make(map[Action]bool, len(c.Actions))
	for _, a := range c.Actions {
		if a.Key == "" {
			return fmt.Errorf("permission catalog: action with empty key")
		}
		if seen[a.Key] {
			return fmt.Errorf("permission catalog: duplicate action %q", a.Key)
		}
		seen[a.Key] = true

		targets := a.ApplicableTo
		if len(targets) == 0 {
			for _, p := range c.Pages {
				targets = append(targets, p.Key)
			}
		}
		for _, p := range targets {
			if !pages[p] {
				return fmt.Errorf("permission catalog: action %q refers to unknown page %q", a.Key, p)
			}
			c.applicable[p][a.Key] = true
		}
	}
	return nil
}

// Applicable reports whether action is meaningful on page.
func (c *Catalog) Applicable(page Page, action Action) bool {
	return c.applicable[page][action]
}

// HasPage reports whether page is known.
func (c *Catalog) HasPage(page Page) bool {
	_, ok := c.applicable[page]
	return ok
}

// HasAction reports whether action is known.
func (c *Catalog) HasAction(action Action) bool {
	for _, a := range c.Actions {
		if a.Key == action {
			return true
		}
	}
	return false
}

// ActionsFor returns the actions applicable to page in catalog order.
func (c *Catalog) ActionsFor(page Page) []Action {
	var out []Action
	for _, a := range c.Actions {
		if c.Applicable(page, a.Key) {
			out = append(out, a.Key)
		}
	}
	return out
}

// PagesFor returns the pages action applies to in catalog order.
func (c *Catalog) PagesFor(action Action) []Page {
	var out []Page
	for _, p := range c.Pages {
		if c.Applicable(p.Key, action) {
			out = append(out, p.Key)
		}
	}
	return out
}

// ZeroMatrix returns a matrix with every applicable cell explicitly 0.
func (c *Catalog) ZeroMatrix() Matrix {
	m := make(Matrix, len(c.Pages))
	for _, p := range c.Pages {
		row := make(map[Action]int)
		for _, a := range c.ActionsFor(p.Key) {
			row[a] = 0
		}
		m[p.Key] = row
	}
	return m
}

// FullMatrix returns a matrix with every applicable cell set to 1.
func (c *Catalog) FullMatrix() Matrix {
	m := c.ZeroMatrix()
	for page, row := range m {
		for action := range row {
			m[page][action] = 1
		}
	}
	return m
}
