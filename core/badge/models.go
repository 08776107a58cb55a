package badge

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// Badge types
const (
	TypeAchievement   = "achievement"
	TypeMilestone     = "milestone"
	TypeParticipation = "participation"
	TypeSkill         = "skill"
	TypeSpecial       = "special"
)

// Rarities
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Trigger types
const (
	TriggerCourseCompletion   = "course_completion"
	TriggerTestScore          = "test_score"
	TriggerPerfectScore       = "perfect_score"
	TriggerParticipationCount = "participation_count"
	TriggerCustom             = "custom"
)

// Comparison operators
const (
	CompareGTE = "gte"
	CompareGT  = "gt"
	CompareEQ  = "eq"
	CompareLT  = "lt"
	CompareLTE = "lte"
)

// Point transaction types
const (
	TxnEarned  = "earned"
	TxnSpent   = "spent"
	TxnBonus   = "bonus"
	TxnPenalty = "penalty"
)

var (
	AllTypes     = []string{TypeAchievement, TypeMilestone, TypeParticipation, TypeSkill, TypeSpecial}
	AllRarities  = []string{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}
	AllTriggers  = []string{TriggerCourseCompletion, TriggerTestScore, TriggerPerfectScore, TriggerParticipationCount, TriggerCustom}
	AllOperators = []string{CompareGTE, CompareGT, CompareEQ, CompareLT, CompareLTE}
)

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Type   string `json:"badge_type"`
	Rarity string `json:"rarity"`

	IconClass       string `json:"icon_class,omitempty"`
	Color           string `json:"color"`
	BackgroundColor string `json:"background_color"`

	TriggerType string `json:"trigger_type"`
	CourseID    string `json:"course_id,omitempty"` // restrict to one course

	RequiredValue      float64 `json:"required_value"`
	ComparisonOperator string  `json:"comparison_operator"`

	IsActive    bool `json:"is_active"`
	IsStackable bool `json:"is_stackable"`
	MaxAwards   int  `json:"max_awards"` // 0 = unlimited
	IsSecret    bool `json:"is_secret"`

	PointsValue int `json:"points_value"`
	XPReward    int `json:"xp_reward"`

	AvailableFrom  time.Time `json:"available_from,omitempty"`
	AvailableUntil time.Time `json:"available_until,omitempty"`

	TotalAwarded int `json:"total_awarded"`

	CreatedByID string    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsAvailable reports whether the badge can currently be earned.
func (b Badge) IsAvailable(now time.Time) bool {
	if !b.AvailableFrom.IsZero() && now.Before(b.AvailableFrom) {
		return false
	}
	if !b.AvailableUntil.IsZero() && now.After(b.AvailableUntil) {
		return false
	}
	return b.IsActive
}

// EvalContext carries the trigger event data a badge is evaluated against.
type EvalContext struct {
	CourseID         string
	CompletedCourses int
	BestPercentage   float64
}

// MeetsCriteria checks the trigger-specific criteria against the event.
// Award limits and availability are checked by the service.
func (b Badge) MeetsCriteria(evalCtx EvalContext) bool {
	switch b.TriggerType {
	case TriggerCourseCompletion:
		if b.CourseID != "" {
			return b.CourseID == evalCtx.CourseID
		}
		return b.compareValue(float64(evalCtx.CompletedCourses))
	case TriggerTestScore:
		return b.compareValue(evalCtx.BestPercentage)
	case TriggerPerfectScore:
		return evalCtx.BestPercentage == 100
	}
	return false
}

func (b Badge) compareValue(actual float64) bool {
	switch b.ComparisonOperator {
	case CompareGTE:
		return actual >= b.RequiredValue
	case CompareGT:
		return actual > b.RequiredValue
	case CompareEQ:
		return actual == b.RequiredValue
	case CompareLT:
		return actual < b.RequiredValue
	case CompareLTE:
		return actual <= b.RequiredValue
	}
	return false
}

type NewBadge struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required"`

	Type   string `json:"badge_type" validate:"omitempty,badgetype"`
	Rarity string `json:"rarity" validate:"omitempty,badgerarity"`

	IconClass       string `json:"icon_class"`
	Color           string `json:"color" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"omitempty,hexcolor"`

	TriggerType string `json:"trigger_type" validate:"omitempty,badgetrigger"`
	CourseID    string `json:"course_id"`

	RequiredValue      float64 `json:"required_value" validate:"gte=0"`
	ComparisonOperator string  `json:"comparison_operator" validate:"omitempty,oneof=gte gt eq lt lte"`

	IsStackable bool `json:"is_stackable"`
	MaxAwards   int  `json:"max_awards" validate:"gte=0"`
	IsSecret    bool `json:"is_secret"`

	PointsValue int `json:"points_value" validate:"gte=0"`
	XPReward    int `json:"xp_reward" validate:"gte=0"`

	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until"`
}

func (nb *NewBadge) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	if nb.Type == "" {
		nb.Type = TypeAchievement
	}
	if nb.Rarity == "" {
		nb.Rarity = RarityCommon
	}
	if nb.TriggerType == "" {
		nb.TriggerType = TriggerCourseCompletion
	}
	if nb.ComparisonOperator == "" {
		nb.ComparisonOperator = CompareGTE
	}
	if nb.Color == "" {
		nb.Color = "#007bff"
	}
	if nb.BackgroundColor == "" {
		nb.BackgroundColor = "#ffffff"
	}
	if nb.PointsValue == 0 {
		nb.PointsValue = 10
	}
	if nb.MaxAwards == 0 && !nb.IsStackable {
		nb.MaxAwards = 1
	}
	return validate.Struct(nb)
}

type UserBadge struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	BadgeID string `json:"badge_id"`

	EarnedAt    time.Time `json:"earned_at"` // UTC
	AwardedByID string    `json:"awarded_by_id,omitempty"`

	IsFeatured bool `json:"is_featured"`
	IsPublic   bool `json:"is_public"`
}

/// UserPoints is the per-user gamification ledger head: spendable points,
// XP with a derived level, and the daily activity streak.
type UserPoints struct {
	UserID string `json:"user_id"`

	TotalPoints     int `json:"total_points"`
	AvailablePoints int `json:"available_points"`
	SpentPoints     int `json:"spent_points"`

	TotalXP       int `json:"total_xp"`
	Level         int `json:"level"`
	XPToNextLevel int `json:"xp_to_next_level"`

	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate time.Time `json:"last_activity_date,omitempty"`

	BadgesEarned     int `json:"badges_earned"`
	CoursesCompleted int `json:"courses_completed"`
	TestsPassed      int `json:"tests_passed"`

	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// AddPoints credits points and returns the ledger entries, including any
// level-up bonus triggered along the way.
func (up *UserPoints) AddPoints(points int, reason string) []PointTransaction {
	up.TotalPoints += points
	up.AvailablePoints += points
	txns := []PointTransaction{{
		UserID: up.UserID,
		Points: points,
		Type:   TxnEarned,
		Reason: reason,
	}}
	return append(txns, up.checkLevelUp()...)
}

// SpendPoints debits available points; returns false when the balance is short.
func (up *UserPoints) SpendPoints(points int, reason string) (PointTransaction, bool) {
	if up.AvailablePoints < points {
		return PointTransaction{}, false
	}
	up.AvailablePoints -= points
	up.SpentPoints += points
	return PointTransaction{
		UserID: up.UserID,
		Points: -points,
		Type:   TxnSpent,
		Reason: reason,
	}, true
}

// AddXP credits experience and returns any level-up bonus entries.
func (up *UserPoints) AddXP(xp int) []PointTransaction {
	up.TotalXP += xp
	return up.checkLevelUp()
}

// checkLevelUp recomputes the level from total XP (level = sqrt(xp/100)+1)
// and pays a level*10 point bonus on each level gained.
func (up *UserPoints) checkLevelUp() []PointTransaction {
	newLevel := int(math.Sqrt(float64(up.TotalXP)/100)) + 1
	if newLevel < 1 {
		newLevel = 1
	}

	var txns []PointTransaction
	if newLevel > up.Level {
		up.Level = newLevel
		bonus := newLevel * 10
		up.TotalPoints += bonus
		up.AvailablePoints += bonus
		txns = append(txns, PointTransaction{
			UserID: up.UserID,
			Points: bonus,
			Type:   TxnBonus,
			Reason: "level up",
		})
	}

	nextLevelXP := up.Level * up.Level * 100
	if up.XPToNextLevel = nextLevelXP - up.TotalXP; up.XPToNextLevel < 0 {
		up.XPToNextLevel = 0
	}
	return txns
}

// RecordActivity advances the daily streak. Consecutive days extend it,
// a gap resets it to 1, same-day activity is a no-op.
func (up *UserPoints) RecordActivity(today time.Time) {
	today = today.Truncate(24 * time.Hour)
	last := up.LastActivityDate.Truncate(24 * time.Hour)

	switch {
	case last.Equal(today):
		return
	case last.Equal(today.AddDate(0, 0, -1)):
		up.CurrentStreak++
	default:
		up.CurrentStreak = 1
	}
	if up.CurrentStreak > up.LongestStreak {
		up.LongestStreak = up.CurrentStreak
	}
	up.LastActivityDate = today
}

type PointTransaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Points int    `json:"points"` // negative when spending
	Type   string `json:"transaction_type"`
	Reason string `json:"reason"`

	BadgeID  string `json:"badge_id,omitempty"`
	CourseID string `json:"course_id,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
}

// LeaderboardEntry is one ranked row of the points leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}
