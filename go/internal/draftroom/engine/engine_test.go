package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

func activeState(t *testing.T, rules Rules) DraftState {
	t.Helper()
	s := NewState(rules)
	require.NoError(t, Start(&s, rules, t0))
	return s
}

func TestNewState_Defaults(t *testing.T) {
	rules := DefaultRules()
	s := NewState(rules)

	assert.Equal(t, StatusWaiting, s.Status)
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, 1, s.CurrentPick)
	assert.Equal(t, 1, s.CurrentPickerSeat)
	assert.Equal(t, rules.TimePerPickSec, s.TimeRemainingSec)
	assert.Empty(t, s.Picks)
	assert.Empty(t, s.Chat)
}

func TestSubmitPick_ExampleScenario(t *testing.T) {
	rules := DefaultRules()
	rules.LeagueSize = 2
	s := activeState(t, rules)

	_, err := SubmitPick(&s, rules, 1, "P100", t0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentPick)
	assert.Equal(t, 2, s.CurrentPickerSeat)
	assert.Equal(t, 1, s.CurrentRound)

	_, err = SubmitPick(&s, rules, 2, "P200", t0)
	require.NoError(t, err)
	assert.Equal(t, 3, s.CurrentPick)
	assert.Equal(t, 2, s.CurrentRound)
	assert.Equal(t, 2, s.CurrentPickerSeat)

	_, err = SubmitPick(&s, rules, 1, "P300", t0)
	require.ErrorIs(t, err, ErrWrongTurn)
	assert.Equal(t, 3, s.CurrentPick)
	assert.Equal(t, 2, s.CurrentPickerSeat)
	assert.Len(t, s.Picks, 2)
}

func TestSubmitPick_Rejections(t *testing.T) {
	rules := DefaultRules()

	cases := []struct {
		name    string
		setup   func(s *DraftState)
		seat    int
		item    string
		wantErr error
	}{
		{
			name:    "out of turn",
			seat:    5,
			item:    "P1",
			wantErr: ErrWrongTurn,
		},
		{
			name:    "blank item",
			seat:    1,
			item:    "   ",
			wantErr: ErrEmptyItem,
		},
		{
			name:    "paused",
			setup:   func(s *DraftState) { s.Status = StatusPaused },
			seat:    1,
			item:    "P1",
			wantErr: ErrNotActive,
		},
		{
			name:    "waiting",
			setup:   func(s *DraftState) { s.Status = StatusWaiting },
			seat:    1,
			item:    "P1",
			wantErr: ErrNotActive,
		},
		{
			name:    "completed",
			setup:   func(s *DraftState) { s.Status = StatusCompleted },
			seat:    1,
			item:    "P1",
			wantErr: ErrDraftCompleted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := activeState(t, rules)
			if tc.setup != nil {
				tc.setup(&s)
			}
			before := s.Clone()

			_, err := SubmitPick(&s, rules, tc.seat, tc.item, t0)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before.CurrentPick, s.CurrentPick)
			assert.Equal(t, before.CurrentPickerSeat, s.CurrentPickerSeat)
			assert.Equal(t, before.Picks, s.Picks)
		})
	}
}

func TestAdvance_SnakeOrder(t *testing.T) {
	rules := DefaultRules()
	s := activeState(t, rules)

	prevRound := s.CurrentRound
	prevSeat := s.CurrentPickerSeat
	for i := 0; i < rules.TotalPicks()-1; i++ {
		_, err := SubmitPick(&s, rules, s.CurrentPickerSeat, fmt.Sprintf("P%d", i), t0)
		require.NoError(t, err)

		if s.CurrentRound == prevRound {
			if prevRound%2 == 1 {
				assert.Equal(t, prevSeat+1, s.CurrentPickerSeat, "odd round must increase")
			} else {
				assert.Equal(t, prevSeat-1, s.CurrentPickerSeat, "even round must decrease")
			}
		} else {
			assert.Equal(t, prevRound+1, s.CurrentRound, "round boundary crossed once")
			assert.Equal(t, prevSeat, s.CurrentPickerSeat, "boundary seat picks again")
		}

		round, seat := SeatForPick(s.CurrentPick, rules.LeagueSize)
		assert.Equal(t, round, s.CurrentRound)
		assert.Equal(t, seat, s.CurrentPickerSeat)

		prevRound, prevSeat = s.CurrentRound, s.CurrentPickerSeat
	}
	assert.Equal(t, StatusActive, s.Status)
}

func TestAdvance_CompletionIsTerminal(t *testing.T) {
	rules := Rules{LeagueSize: 3, TotalRounds: 2, TimePerPickSec: 30, Quorum: 2, ChatHistory: 100}
	s := activeState(t, rules)

	for i := 0; i < rules.TotalPicks(); i++ {
		_, err := SubmitPick(&s, rules, s.CurrentPickerSeat, fmt.Sprintf("P%d", i), t0)
		require.NoError(t, err)
	}
	require.Equal(t, StatusCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)
	assert.Len(t, s.Picks, 6)

	pick, seat := s.CurrentPick, s.CurrentPickerSeat
	assert.False(t, Advance(&s, rules))
	assert.Equal(t, pick, s.CurrentPick)
	assert.Equal(t, seat, s.CurrentPickerSeat)

	_, err := AutoPick(&s, rules, "", t0)
	require.ErrorIs(t, err, ErrDraftCompleted)
	assert.False(t, Tick(&s))
}

func TestAutoPick_UsesSentinelAndFlagsPick(t *testing.T) {
	rules := DefaultRules()
	s := activeState(t, rules)

	p, err := AutoPick(&s, rules, "", t0)
	require.NoError(t, err)
	assert.Equal(t, AutoPickItem, p.ItemID)
	assert.True(t, p.IsAutoPick)
	assert.Equal(t, 1, p.Seat)
	assert.Equal(t, 1, p.PickNumber)
	assert.Equal(t, 2, s.CurrentPickerSeat)
}

func TestTick_ExpiresAtZero(t *testing.T) {
	rules := DefaultRules()
	rules.TimePerPickSec = 3
	s := activeState(t, rules)

	assert.False(t, Tick(&s))
	assert.False(t, Tick(&s))
	assert.True(t, Tick(&s))
	assert.Equal(t, 0, s.TimeRemainingSec)
}

func TestPauseResume_KeepsTurnState(t *testing.T) {
	rules := DefaultRules()
	s := activeState(t, rules)
	Tick(&s)
	Tick(&s)
	remaining := s.TimeRemainingSec

	require.NoError(t, Pause(&s, t0))
	assert.False(t, Tick(&s), "paused clock must not run")
	require.ErrorIs(t, Pause(&s, t0), ErrInvalidStatus)
	require.NoError(t, Resume(&s))

	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, remaining, s.TimeRemainingSec)
	assert.Equal(t, 1, s.CurrentPick)
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, 1, s.CurrentPickerSeat)
	require.ErrorIs(t, Resume(&s), ErrInvalidStatus)
}

func TestAppendChat_BoundedLog(t *testing.T) {
	rules := DefaultRules()
	s := NewState(rules)

	for i := 0; i < 130; i++ {
		_, err := AppendChat(&s, ChatMessage{UserID: "u", Text: fmt.Sprintf("msg-%d", i)}, rules.ChatHistory)
		require.NoError(t, err)
	}
	require.Len(t, s.Chat, 100)
	assert.Equal(t, "msg-30", s.Chat[0].Text)
	assert.Equal(t, "msg-129", s.Chat[99].Text)
	assert.NotEmpty(t, s.Chat[0].ID)

	_, err := AppendChat(&s, ChatMessage{UserID: "u", Text: "  "}, rules.ChatHistory)
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, s.Chat, 100)
}

func TestSeatForPick(t *testing.T) {
	cases := []struct {
		pick, size, round, seat int
	}{
		{1, 12, 1, 1},
		{12, 12, 1, 12},
		{13, 12, 2, 12},
		{24, 12, 2, 1},
		{25, 12, 3, 1},
		{0, 12, 0, 0},
	}
	for _, tc := range cases {
		round, seat := SeatForPick(tc.pick, tc.size)
		assert.Equal(t, tc.round, round, "pick %d", tc.pick)
		assert.Equal(t, tc.seat, seat, "pick %d", tc.pick)
	}
}
