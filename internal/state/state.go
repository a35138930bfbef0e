// Package state holds the per-tab results and UI state of one dashboard session.
package state

import (
	"encoding/json"
	"sync"

	"trendscope/internal/core"
	"trendscope/internal/filter"
)

// Store is the result state container. Every method is atomic; sequences are copied on the way in
// and on the way out so callers never share backing arrays with the store.
type Store struct {
	mu         sync.Mutex
	currentTab core.TabID
	raw        map[core.TabID][]core.ResultItem
	displayed  map[core.TabID][]core.ResultItem
	tabs       map[core.TabID]core.TabState
	filter     core.FilterConfig
	tokens     map[tokenKey]uint64
}

// Slot names the tab state field a generation request writes to.
type Slot string

const (
	SlotSummary Slot = "summary"
	SlotQuery   Slot = "query"
	SlotPost    Slot = "post"
)

type tokenKey struct {
	tab  core.TabID
	slot Slot
}

// NewStore returns a store on the clusters tab with placeholder tab states and the default filter.
func NewStore() *Store {
	s := &Store{
		currentTab: core.TabClusters,
		raw:        make(map[core.TabID][]core.ResultItem),
		displayed:  make(map[core.TabID][]core.ResultItem),
		tabs:       make(map[core.TabID]core.TabState),
		filter:     core.DefaultFilterConfig(),
		tokens:     make(map[tokenKey]uint64),
	}
	for _, tab := range core.Tabs() {
		s.tabs[tab] = core.NewTabState()
	}
	return s
}

func (s *Store) CurrentTab() core.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTab
}

func (s *Store) SetCurrentTab(tab core.TabID) error {
	if !tab.Valid() {
		return core.NewValidationError("unknown tab " + string(tab))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTab = tab
	return nil
}

// RawResults returns a copy of the last fetch for tab, empty when nothing was stored.
func (s *Store) RawResults(tab core.TabID) []core.ResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.raw[tab])
}

func (s *Store) SetRawResults(tab core.TabID, items []core.ResultItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[tab] = clone(items)
}

// DisplayedResults returns a copy of the filtered results for tab, empty when nothing was stored.
func (s *Store) DisplayedResults(tab core.TabID) []core.ResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.displayed[tab])
}

func (s *Store) SetDisplayedResults(tab core.TabID, items []core.ResultItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed[tab] = clone(items)
}

// SetResults stores a fetch for tab and recomputes its displayed set under the current filter.
func (s *Store) SetResults(tab core.TabID, items []core.ResultItem) []core.ResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[tab] = clone(items)
	s.displayed[tab] = filter.Apply(s.raw[tab], s.filter)
	return clone(s.displayed[tab])
}

// Refilter recomputes tab's displayed results from its raw results under the current filter.
func (s *Store) Refilter(tab core.TabID) []core.ResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed[tab] = filter.Apply(s.raw[tab], s.filter)
	return clone(s.displayed[tab])
}

// ClearResults drops both result sequences of tab.
func (s *Store) ClearResults(tab core.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.raw, tab)
	delete(s.displayed, tab)
}

func (s *Store) Filter() core.FilterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter replaces the process-wide filter and recomputes the active tab's displayed results.
func (s *Store) SetFilter(cfg core.FilterConfig) []core.ResultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = cfg
	s.displayed[s.currentTab] = filter.Apply(s.raw[s.currentTab], cfg)
	return clone(s.displayed[s.currentTab])
}

// TabState returns the UI state of tab.
func (s *Store) TabState(tab core.TabID) core.TabState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabStateLocked(tab)
}

// SetTabState overwrites the UI state of tab wholesale.
func (s *Store) SetTabState(tab core.TabID, st core.TabState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = st
}

// UpdateTabState merges update shallowly into tab's state and returns the result.
func (s *Store) UpdateTabState(tab core.TabID, update core.TabStateUpdate) core.TabState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := update.Apply(s.tabStateLocked(tab))
	s.tabs[tab] = next
	return next
}

// UpdateTabStateFunc derives the update from the previous state under the store lock.
func (s *Store) UpdateTabStateFunc(tab core.TabID, fn func(prev core.TabState) core.TabStateUpdate) core.TabState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tabStateLocked(tab)
	next := fn(prev).Apply(prev)
	s.tabs[tab] = next
	return next
}

// ResetTabInsights restores the summary placeholder and clears Q&A and post fields, keeping searchInput.
// Requests issued for the tab before the reset are no longer the latest.
func (s *Store) ResetTabInsights(tab core.TabID) core.TabState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range []Slot{SlotSummary, SlotQuery, SlotPost} {
		s.tokens[tokenKey{tab, slot}]++
	}
	prev := s.tabStateLocked(tab)
	next := core.NewTabState()
	next.SearchInput = prev.SearchInput
	s.tabs[tab] = next
	return next
}

// BeginRequest issues the next generation token for the slot of tab.
func (s *Store) BeginRequest(tab core.TabID, slot Slot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenKey{tab, slot}
	s.tokens[key]++
	return s.tokens[key]
}

// IsLatest reports whether token is the most recent one issued for the slot of tab.
func (s *Store) IsLatest(tab core.TabID, slot Slot, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[tokenKey{tab, slot}] == token
}

// UpdateTabStateIfLatest applies update only when token is still the latest for the slot.
func (s *Store) UpdateTabStateIfLatest(tab core.TabID, slot Slot, token uint64, update core.TabStateUpdate) (core.TabState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tabStateLocked(tab)
	if s.tokens[tokenKey{tab, slot}] != token {
		return prev, false
	}
	next := update.Apply(prev)
	s.tabs[tab] = next
	return next, true
}

func (s *Store) tabStateLocked(tab core.TabID) core.TabState {
	st, ok := s.tabs[tab]
	if !ok {
		return core.NewTabState()
	}
	return st
}

// clone deep-copies items so neither side can write through a shared pointer,
// slice or raw payload. The result is never nil.
func clone(items []core.ResultItem) []core.ResultItem {
	out := make([]core.ResultItem, len(items))
	for i, it := range items {
		out[i] = cloneItem(it)
	}
	return out
}

func cloneItem(it core.ResultItem) core.ResultItem {
	if it.SearchScore != nil {
		score := *it.SearchScore
		it.SearchScore = &score
	}
	if it.Raw != nil {
		it.Raw = append(json.RawMessage(nil), it.Raw...)
	}
	if it.Posts != nil {
		it.Posts = clone(it.Posts)
	}
	return it
}
