package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/console/internal/enum"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Errors returned by the order session manager. They are reported before any
// backend call is made.
var (
	ErrNoActiveTable = errors.New("select a table first")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrUnknownItem   = errors.New("menu item not found")
	ErrUnknownTable  = errors.New("table not found")
)

// Backend is the slice of the restaurant REST API the session needs.
// Satisfied by *backend.Client; narrow interface for testability.
type Backend interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListDishes(ctx context.Context) ([]model.MenuItem, error)
	GetActiveOrder(ctx context.Context, tableID string) (model.Order, error)
	PlaceOrder(ctx context.Context, tableID string, lines []model.CartLine) error
}

// Notifier receives session events for delivery to the admin's browser.
// Satisfied by *ws.Hub.
type Notifier interface {
	Publish(sessionID uuid.UUID, eventType string, payload any)
}

// Options tune behaviour the restaurant has to decide on.
type Options struct {
	// ClearCartOnPlace empties a table's cart after its order is accepted.
	// When false the placed lines stay visible until the next active-order load.
	ClearCartOnPlace bool

	// CoalesceActiveOrderFetches shares one in-flight active-order request
	// between concurrent selections of the same table. When false, duplicate
	// fetches race and the last to resolve wins.
	CoalesceActiveOrderFetches bool

	// FetchTimeout bounds each background active-order fetch. Zero means no
	// timeout beyond the backend client's own.
	FetchTimeout time.Duration
}

// Session is one admin's point-of-sale state: reference data, the cart of
// every table they touched, and the active selection. All methods are safe
// for concurrent use; backend calls are never made with the lock held.
type Session struct {
	ID uuid.UUID

	api      Backend
	notifier Notifier
	opts     Options

	mu               sync.Mutex
	tables           []model.Table
	categories       []model.Category
	dishes           []model.MenuItem
	carts            map[string][]model.CartLine
	loading          map[string]int
	activeTableID    string
	activeCategoryID string
	search           string

	fetches sync.WaitGroup
	group   singleflight.Group
}

// NewSession creates an empty session. notifier may be nil.
func NewSession(id uuid.UUID, api Backend, notifier Notifier, opts Options) *Session {
	return &Session{
		ID:       id,
		api:      api,
		notifier: notifier,
		opts:     opts,
		carts:    make(map[string][]model.CartLine),
		loading:  make(map[string]int),
	}
}

// --- Reference data ---

// LoadReferenceData fetches tables, categories and dishes concurrently. A
// failed fetch leaves its previous data in place; all failures are joined.
func (s *Session) LoadReferenceData(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, 3)
	g.Go(func() error { errs[0] = s.RefreshTables(ctx); return nil })
	g.Go(func() error { errs[1] = s.RefreshCategories(ctx); return nil })
	g.Go(func() error { errs[2] = s.RefreshDishes(ctx); return nil })
	g.Wait() //nolint:errcheck
	return errors.Join(errs...)
}

// RefreshTables replaces the table list. When no table is active yet the
// first table is selected, which starts loading its active order.
func (s *Session) RefreshTables(ctx context.Context) error {
	tables, err := s.api.ListTables(ctx)
	if err != nil {
		s.reportFailure("Failed to load tables", err)
		return fmt.Errorf("fetch tables: %w", err)
	}

	s.mu.Lock()
	s.tables = tables
	autoSelect := ""
	if s.activeTableID == "" && len(tables) > 0 {
		autoSelect = tables[0].ID
		s.activeTableID = autoSelect
		s.beginLoadLocked(autoSelect)
	}
	s.mu.Unlock()

	s.publish(enum.EventTablesUpdated, tables)
	if autoSelect != "" {
		s.loadActiveOrder(ctx, autoSelect)
	}
	return nil
}

// RefreshCategories replaces the category list and selects the first one
// when none is active.
func (s *Session) RefreshCategories(ctx context.Context) error {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		s.reportFailure("Failed to load categories", err)
		return fmt.Errorf("fetch categories: %w", err)
	}

	s.mu.Lock()
	s.categories = categories
	if s.activeCategoryID == "" && len(categories) > 0 {
		s.activeCategoryID = categories[0].ID
	}
	s.mu.Unlock()
	return nil
}

// RefreshDishes replaces the dish list.
func (s *Session) RefreshDishes(ctx context.Context) error {
	dishes, err := s.api.ListDishes(ctx)
	if err != nil {
		s.reportFailure("Failed to load dishes", err)
		return fmt.Errorf("fetch dishes: %w", err)
	}

	s.mu.Lock()
	s.dishes = dishes
	s.mu.Unlock()
	return nil
}

func (s *Session) Tables() []model.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Table(nil), s.tables...)
}

func (s *Session) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Category(nil), s.categories...)
}

func (s *Session) Dishes() []model.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MenuItem(nil), s.dishes...)
}

// --- Selection ---

// SelectTable makes tableID the active table. Reselecting the active table
// does nothing and returns a nil channel. Otherwise the table's active order
// is fetched in the background and the returned channel yields the outcome
// once it has been committed.
//
// The fetched order overwrites the table's cart; it is not merged with local
// edits. The result is always written to the slot of the table the fetch was
// issued for, never to whichever table is active when it resolves.
func (s *Session) SelectTable(ctx context.Context, tableID string) (<-chan error, error) {
	if tableID == "" {
		return nil, ErrNoActiveTable
	}

	s.mu.Lock()
	if tableID == s.activeTableID {
		s.mu.Unlock()
		return nil, nil
	}
	if len(s.tables) > 0 && !containsTable(s.tables, tableID) {
		s.mu.Unlock()
		return nil, ErrUnknownTable
	}
	s.activeTableID = tableID
	s.beginLoadLocked(tableID)
	s.mu.Unlock()

	return s.loadActiveOrder(ctx, tableID), nil
}

func (s *Session) ActiveTableID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTableID
}

// SelectCategory sets the category the menu is filtered by.
func (s *Session) SelectCategory(categoryID string) {
	s.mu.Lock()
	s.activeCategoryID = categoryID
	s.mu.Unlock()
}

// SetSearch sets the free-text menu filter.
func (s *Session) SetSearch(text string) {
	s.mu.Lock()
	s.search = text
	s.mu.Unlock()
}

// CartState reports where tableID is in its Uninitialized → Loading → Ready
// lifecycle.
func (s *Session) CartState(tableID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartStateLocked(tableID)
}

func (s *Session) cartStateLocked(tableID string) string {
	if s.loading[tableID] > 0 {
		return enum.CartStateLoading
	}
	if _, ok := s.carts[tableID]; ok {
		return enum.CartStateReady
	}
	return enum.CartStateUninitialized
}

// Wait blocks until every active-order fetch started so far has committed.
func (s *Session) Wait() {
	s.fetches.Wait()
}

func (s *Session) beginLoadLocked(tableID string) {
	s.loading[tableID]++
}

// loadActiveOrder fetches tableID's active order without the caller's
// cancellation, so a fetch started by a short-lived request still lands.
func (s *Session) loadActiveOrder(ctx context.Context, tableID string) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		defer close(done)

		order, err := s.fetchActiveOrder(ctx, tableID)
		if err != nil {
			err = fmt.Errorf("load active order for table %s: %w", tableID, err)
		}
		s.commitActiveOrder(tableID, order, err)
		done <- err
	}()
	return done
}

func (s *Session) fetchActiveOrder(ctx context.Context, tableID string) (model.Order, error) {
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	if !s.opts.CoalesceActiveOrderFetches {
		return s.api.GetActiveOrder(ctx, tableID)
	}

	v, err, _ := s.group.Do(tableID, func() (any, error) {
		return s.api.GetActiveOrder(ctx, tableID)
	})
	if err != nil {
		return model.Order{}, err
	}
	return v.(model.Order), nil
}

// commitActiveOrder applies a finished fetch to tableID's slot only.
func (s *Session) commitActiveOrder(tableID string, order model.Order, err error) {
	s.mu.Lock()
	if s.loading[tableID] <= 1 {
		delete(s.loading, tableID)
	} else {
		s.loading[tableID]--
	}
	if err == nil {
		s.carts[tableID] = cloneLines(order.Items)
	}
	lines := cloneLines(s.carts[tableID])
	s.mu.Unlock()

	if err != nil {
		s.reportFailure("Failed to load active order", err)
		return
	}
	s.publishCart(tableID, lines)
}

// --- Cart ---

// AddItem adds one of item to the active table's cart. An existing line for
// the same item id is incremented in place; otherwise a line is appended.
func (s *Session) AddItem(item model.MenuItem) error {
	s.mu.Lock()
	tableID := s.activeTableID
	if tableID == "" {
		s.mu.Unlock()
		return ErrNoActiveTable
	}
	s.carts[tableID] = addLine(s.carts[tableID], item)
	lines := cloneLines(s.carts[tableID])
	s.mu.Unlock()

	s.publishCart(tableID, lines)
	return nil
}

// AddItemByID adds one of the dish with itemID, looked up first among the
// active cart's lines (which may hold dishes no longer on the menu) and then
// in the menu.
func (s *Session) AddItemByID(itemID string) error {
	s.mu.Lock()
	if s.activeTableID == "" {
		s.mu.Unlock()
		return ErrNoActiveTable
	}
	item, ok := s.lookupItemLocked(itemID)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownItem
	}
	return s.AddItem(item)
}

func (s *Session) lookupItemLocked(itemID string) (model.MenuItem, bool) {
	if i := indexOfLine(s.carts[s.activeTableID], itemID); i >= 0 {
		return s.carts[s.activeTableID][i].Item, true
	}
	for _, d := range s.dishes {
		if d.ID == itemID {
			return d, true
		}
	}
	return model.MenuItem{}, false
}

// DecrementItem removes one of itemID from the active table's cart. A line
// reaching zero is removed. Unknown item ids are ignored.
func (s *Session) DecrementItem(itemID string) error {
	s.mu.Lock()
	tableID := s.activeTableID
	if tableID == "" {
		s.mu.Unlock()
		return ErrNoActiveTable
	}
	updated, changed := decrementLine(s.carts[tableID], itemID)
	if !changed {
		s.mu.Unlock()
		return nil
	}
	s.carts[tableID] = updated
	lines := cloneLines(updated)
	s.mu.Unlock()

	s.publishCart(tableID, lines)
	return nil
}

// Cart returns a copy of tableID's cart in insertion order.
func (s *Session) Cart(tableID string) []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.carts[tableID])
}

// ActiveCart returns a copy of the active table's cart.
func (s *Session) ActiveCart() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.carts[s.activeTableID])
}

// Total returns the sum of qty * price over tableID's cart.
func (s *Session) Total(tableID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.carts[tableID])
}

// --- Menu ---

// VisibleMenu filters the dishes to categoryID and then by search text.
func (s *Session) VisibleMenu(categoryID, search string) []model.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterMenu(s.dishes, categoryID, search)
}

// ActiveMenu is VisibleMenu for the current category and search text.
func (s *Session) ActiveMenu() []model.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterMenu(s.dishes, s.activeCategoryID, s.search)
}

// --- Orders ---

// PlaceOrder submits tableID's full cart. A missing table or an empty cart
// fails before any network call. On backend failure the cart is left as is.
// With ClearCartOnPlace only the submitted quantities are removed, so lines
// added while the request was in flight survive.
// On success the table list is refreshed so occupancy is current; a failed
// refresh is reported as a notice, not as a failed placement.
func (s *Session) PlaceOrder(ctx context.Context, tableID string) error {
	if tableID == "" {
		return ErrNoActiveTable
	}

	s.mu.Lock()
	lines := cloneLines(s.carts[tableID])
	s.mu.Unlock()
	if len(lines) == 0 {
		return ErrEmptyCart
	}

	if err := s.api.PlaceOrder(ctx, tableID, lines); err != nil {
		s.reportFailure("Failed to place order", err)
		return fmt.Errorf("place order for table %s: %w", tableID, err)
	}

	if s.opts.ClearCartOnPlace {
		s.mu.Lock()
		remaining := subtractLines(s.carts[tableID], lines)
		s.carts[tableID] = remaining
		remaining = cloneLines(remaining)
		s.mu.Unlock()
		s.publishCart(tableID, remaining)
	}

	s.publish(enum.EventOrderPlaced, orderPlacedPayload{TableID: tableID, Total: total(lines)})
	s.notice(enum.NoticeLevelInfo, "Order placed")

	if err := s.RefreshTables(ctx); err != nil {
		log.Printf("WARNING: session %s: refresh tables after order: %v", s.ID, err)
	}
	return nil
}

// PlaceActiveOrder places the order of the active table.
func (s *Session) PlaceActiveOrder(ctx context.Context) error {
	return s.PlaceOrder(ctx, s.ActiveTableID())
}

// --- Snapshot ---

// State is everything the dashboard renders.
type State struct {
	Tables           []model.Table    `json:"tables"`
	Categories       []model.Category `json:"categories"`
	ActiveTableID    string           `json:"active_table_id"`
	ActiveCategoryID string           `json:"active_category_id"`
	Search           string           `json:"search"`
	CartState        string           `json:"cart_state"`
	Menu             []model.MenuItem `json:"menu"`
	Cart             []model.CartLine `json:"cart"`
	Total            decimal.Decimal  `json:"total"`
}

// Snapshot returns a consistent copy of the dashboard state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := cloneLines(s.carts[s.activeTableID])
	return State{
		Tables:           append([]model.Table{}, s.tables...),
		Categories:       append([]model.Category{}, s.categories...),
		ActiveTableID:    s.activeTableID,
		ActiveCategoryID: s.activeCategoryID,
		Search:           s.search,
		CartState:        s.cartStateLocked(s.activeTableID),
		Menu:             filterMenu(s.dishes, s.activeCategoryID, s.search),
		Cart:             cart,
		Total:            total(cart),
	}
}

// --- Events ---

type cartPayload struct {
	TableID string           `json:"table_id"`
	Lines   []model.CartLine `json:"lines"`
	Total   decimal.Decimal  `json:"total"`
}

type orderPlacedPayload struct {
	TableID string          `json:"table_id"`
	Total   decimal.Decimal `json:"total"`
}

type noticePayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (s *Session) publishCart(tableID string, lines []model.CartLine) {
	s.publish(enum.EventCartUpdated, cartPayload{TableID: tableID, Lines: lines, Total: total(lines)})
}

func (s *Session) publish(eventType string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(s.ID, eventType, payload)
}

func (s *Session) notice(level, message string) {
	s.publish(enum.EventNotice, noticePayload{Level: level, Message: message})
}

// reportFailure logs a backend failure and surfaces it to the admin as a
// non-fatal notice.
func (s *Session) reportFailure(fallback string, err error) {
	log.Printf("ERROR: session %s: %s: %v", s.ID, fallback, err)
	s.notice(enum.NoticeLevelError, UserMessage(err, fallback))
}

func containsTable(tables []model.Table, id string) bool {
	for _, t := range tables {
		if t.ID == id {
			return true
		}
	}
	return false
}
