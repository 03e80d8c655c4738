package engine

// Advance moves the draft to the next pick using snake order.
//
// Odd rounds run seat 1 -> LeagueSize, even rounds run LeagueSize -> 1. Stepping past either end
// starts the next round with the boundary seat on the clock again, so the turn seat picks twice.
// It reports true when this call completed the draft. A completed draft is never advanced.
func Advance(s *DraftState, rules Rules) bool {
	if s.Status == StatusCompleted {
		return false
	}

	s.CurrentPick++
	next := s.CurrentPickerSeat + direction(s.CurrentRound)
	if next < 1 || next > rules.LeagueSize {
		s.CurrentRound++
		next = clampSeat(s.CurrentPickerSeat, rules.LeagueSize)
	}
	s.CurrentPickerSeat = next
	s.TimeRemainingSec = rules.TimePerPickSec

	if s.CurrentRound > rules.TotalRounds {
		s.Status = StatusCompleted
		return true
	}
	return false
}

// SeatForPick returns the seat on the clock for a 1-based overall pick number.
func SeatForPick(pick int, leagueSize int) (round int, seat int) {
	if pick < 1 || leagueSize < 1 {
		return 0, 0
	}
	round = (pick-1)/leagueSize + 1
	offset := (pick - 1) % leagueSize
	if round%2 == 1 {
		return round, offset + 1
	}
	return round, leagueSize - offset
}

func direction(round int) int {
	if round%2 == 1 {
		return 1
	}
	return -1
}

func clampSeat(seat, leagueSize int) int {
	if seat < 1 {
		return 1
	}
	if seat > leagueSize {
		return leagueSize
	}
	return seat
}
