package autopick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
)

var (
	ErrNoAvailableItems = errors.New("no available items")
	ErrUnknownStrategy  = errors.New("unknown auto-pick strategy")
)

// Board is what a strategy sees when the clock runs out.
type Board struct {
	RoomKey    string
	Seat       int
	Round      int
	PickNumber int
	Picked     map[string]bool
}

// BoardFor builds the board for the seat currently on the clock.
func BoardFor(roomKey string, s engine.DraftState) Board {
	picked := make(map[string]bool, len(s.Picks))
	for _, p := range s.Picks {
		picked[p.ItemID] = true
	}
	return Board{
		RoomKey:    roomKey,
		Seat:       s.CurrentPickerSeat,
		Round:      s.CurrentRound,
		PickNumber: s.CurrentPick,
		Picked:     picked,
	}
}

// Strategy selects the item recorded for an expired pick.
type Strategy interface {
	Select(ctx context.Context, board Board) (string, error)
}

// PlaceholderStrategy always picks the reserved sentinel item.
type PlaceholderStrategy struct{}

func (PlaceholderStrategy) Select(ctx context.Context, board Board) (string, error) {
	return engine.AutoPickItem, nil
}

// Item is one entry in a rankings file.
type Item struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Position string `yaml:"position"`
	Rank     int    `yaml:"rank"`
}

type rankingsFile struct {
	Items []Item `yaml:"items"`
}

// LoadRankings reads a YAML rankings file. Items keep file order.
func LoadRankings(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rankings file: %w", err)
	}
	return ParseRankings(data)
}

// ParseRankings decodes rankings YAML.
func ParseRankings(data []byte) ([]Item, error) {
	var f rankingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rankings: %w", err)
	}
	items := make([]Item, 0, len(f.Items))
	for _, it := range f.Items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("rankings: %w", ErrNoAvailableItems)
	}
	return items, nil
}

// RankedStrategy picks the best ranked item that is still available.
type RankedStrategy struct {
	items []Item
}

func NewRankedStrategy(items []Item) *RankedStrategy {
	return &RankedStrategy{items: items}
}

func (s *RankedStrategy) Select(ctx context.Context, board Board) (string, error) {
	for _, it := range s.items {
		if !board.Picked[it.ID] {
			return it.ID, nil
		}
	}
	return "", ErrNoAvailableItems
}

// RandomStrategy uses random choice among the available items.
type RandomStrategy struct {
	items []Item

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy(items []Item) *RandomStrategy {
	src := rand.NewSource(time.Now().UnixNano())
	return &RandomStrategy{items: items, rng: rand.New(src)}
}

func (s *RandomStrategy) Select(ctx context.Context, board Board) (string, error) {
	available := make([]string, 0, len(s.items))
	for _, it := range s.items {
		if !board.Picked[it.ID] {
			available = append(available, it.ID)
		}
	}
	if len(available) == 0 {
		return "", ErrNoAvailableItems
	}

	s.mu.Lock()
	choice := available[s.rng.Intn(len(available))]
	s.mu.Unlock()
	return choice, nil
}

// New builds the named strategy. random and ranked read their item pool from rankingsPath.
func New(name, rankingsPath string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "placeholder":
		return PlaceholderStrategy{}, nil
	case "random", "ranked":
		if rankingsPath == "" {
			return nil, fmt.Errorf("%s strategy requires a rankings file", name)
		}
		items, err := LoadRankings(rankingsPath)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("strategy", name).
			Int("items", len(items)).
			Msg("auto-pick rankings loaded")
		if strings.EqualFold(name, "random") {
			return NewRandomStrategy(items), nil
		}
		return NewRankedStrategy(items), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Choose runs s and falls back to the sentinel item on any failure.
func Choose(ctx context.Context, s Strategy, board Board) string {
	if s == nil {
		return engine.AutoPickItem
	}
	item, err := s.Select(ctx, board)
	if err != nil || strings.TrimSpace(item) == "" {
		log.Warn().
			Err(err).
			Str("room_key", board.RoomKey).
			Int("seat", board.Seat).
			Msg("auto-pick strategy failed, using placeholder")
		return engine.AutoPickItem
	}
	return item
}
