package service

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/entity"
)

// Dashboard is the per-session view-model behind every role's dashboard.
type Dashboard struct {
	UserID    string           `json:"user_id"`
	Role      entity.Role      `json:"role"`
	Quotes    []entity.Quote   `json:"quotes"`
	Orders    []entity.Order   `json:"orders"`
	Checkouts map[string]State `json:"checkouts"`
	Loading   bool             `json:"loading"`
	Error     string           `json:"error,omitempty"`
	LoadedAt  time.Time        `json:"loaded_at"`
}

type DashboardAction interface {
	isDashboardAction()
}

type (
	LoadStarted     struct{}
	QuotesLoaded    struct{ Quotes []entity.Quote }
	OrdersLoaded    struct{ Orders []entity.Order }
	LoadFailed      struct{ Message string }
	CheckoutChanged struct{ State State }
)

func (LoadStarted) isDashboardAction()     {}
func (QuotesLoaded) isDashboardAction()    {}
func (OrdersLoaded) isDashboardAction()    {}
func (LoadFailed) isDashboardAction()      {}
func (CheckoutChanged) isDashboardAction() {}

// ReduceDashboard applies a to d. Lists are always replaced, never patched.
func ReduceDashboard(d Dashboard, a DashboardAction) Dashboard {
	switch a := a.(type) {
	case LoadStarted:
		d.Loading = true
		d.Error = ""

	case QuotesLoaded:
		d.Quotes = a.Quotes
		checkouts := make(map[string]State, len(a.Quotes))
		for _, q := range a.Quotes {
			prev, ok := d.Checkouts[q.ID]
			if !ok {
				prev = State{QuoteID: q.ID}
			}
			checkouts[q.ID] = Reduce(prev, QuoteLoaded{Quote: q})
		}
		d.Checkouts = checkouts
		d.Loading = false
		d.LoadedAt = time.Now()

	case OrdersLoaded:
		d.Orders = a.Orders
		d.Loading = false
		d.LoadedAt = time.Now()

	case LoadFailed:
		d.Loading = false
		d.Error = a.Message

	case CheckoutChanged:
		checkouts := make(map[string]State, len(d.Checkouts)+1)
		for k, v := range d.Checkouts {
			checkouts[k] = v
		}
		checkouts[a.State.QuoteID] = a.State
		d.Checkouts = checkouts
	}
	return d
}

// Lister is the read side of the backend.
type Lister interface {
	ListQuotes(ctx context.Context, role entity.Role) ([]entity.Quote, error)
	ListOrders(ctx context.Context, role entity.Role) ([]entity.Order, error)
}

// DashboardStore keeps one Dashboard per user and refreshes it from the backend.
type DashboardStore struct {
	mu       sync.RWMutex
	sessions map[string]Dashboard
	lister   Lister
	onChange func(Dashboard)
}

func NewDashboardStore(lister Lister) *DashboardStore {
	return &DashboardStore{
		sessions: make(map[string]Dashboard),
		lister:   lister,
	}
}

// OnChange registers fn to receive every dashboard after it changes.
func (s *DashboardStore) OnChange(fn func(Dashboard)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *DashboardStore) Get(userID string) (Dashboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.sessions[userID]
	return d, ok
}

// Dispatch applies a to the actor's dashboard and returns the result.
func (s *DashboardStore) Dispatch(actor Actor, a DashboardAction) Dashboard {
	s.mu.Lock()
	d, ok := s.sessions[actor.UserID]
	if !ok {
		d = Dashboard{UserID: actor.UserID, Checkouts: map[string]State{}}
	}
	d.Role = actor.Role
	d = ReduceDashboard(d, a)
	s.sessions[actor.UserID] = d
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(d)
	}
	return d
}

func (s *DashboardStore) CheckoutChanged(actor Actor, state State) {
	s.Dispatch(actor, CheckoutChanged{State: state})
}

// Quote returns the quote with id from the actor's last loaded list.
func (s *DashboardStore) Quote(userID, id string) (entity.Quote, bool) {
	d, ok := s.Get(userID)
	if !ok {
		return entity.Quote{}, false
	}
	for _, q := range d.Quotes {
		if q.ID == id {
			return q, true
		}
	}
	return entity.Quote{}, false
}

func (s *DashboardStore) RefreshQuotes(ctx context.Context, actor Actor) error {
	s.Dispatch(actor, LoadStarted{})
	quotes, err := s.lister.ListQuotes(ctx, actor.Role)
	if err != nil {
		s.Dispatch(actor, LoadFailed{Message: "Failed to load quotes"})
		return err
	}
	s.Dispatch(actor, QuotesLoaded{Quotes: quotes})
	return nil
}

// RefreshAll re-fetches every list the actor's dashboard shows.
func (s *DashboardStore) RefreshAll(ctx context.Context, actor Actor) error {
	if err := s.RefreshQuotes(ctx, actor); err != nil {
		return err
	}
	s.Dispatch(actor, LoadStarted{})
	orders, err := s.lister.ListOrders(ctx, actor.Role)
	if err != nil {
		s.Dispatch(actor, LoadFailed{Message: "Failed to load orders"})
		return err
	}
	s.Dispatch(actor, OrdersLoaded{Orders: orders})
	return nil
}
