package badge

import (
	"testing"
	"time"
)

func TestUserPointsAddPoints(t *testing.T) {
	up := UserPoints{UserID: "u1", Level: 1, XPToNextLevel: 100}
	txns := up.AddPoints(50, "badge: First Steps")

	if up.TotalPoints != 50 || up.AvailablePoints != 50 {
		t.Errorf("points = %d/%d, want 50/50", up.TotalPoints, up.AvailablePoints)
	}
	if len(txns) != 1 {
		t.Fatalf("len(txns) = %d, want 1", len(txns))
	}
	if txns[0].Type != TxnEarned || txns[0].Points != 50 {
		t.Errorf("txn = %+v, want earned/50", txns[0])
	}
}

func TestUserPointsSpendPoints(t *testing.T) {
	up := UserPoints{UserID: "u1", Level: 1, TotalPoints: 100, AvailablePoints: 100}

	txn, ok := up.SpendPoints(60, "avatar unlock")
	if !ok {
		t.Fatal("SpendPoints() = false, want true")
	}
	if up.AvailablePoints != 40 || up.SpentPoints != 60 {
		t.Errorf("balance = %d available / %d spent, want 40/60", up.AvailablePoints, up.SpentPoints)
	}
	if txn.Points != -60 || txn.Type != TxnSpent {
		t.Errorf("txn = %+v, want spent/-60", txn)
	}

	if _, ok = up.SpendPoints(50, "too much"); ok {
		t.Error("SpendPoints() over balance = true, want false")
	}
}

func TestUserPointsLevelUp(t *testing.T) {
	up := UserPoints{UserID: "u1", Level: 1}

	// 400 XP puts the user at level 3 (sqrt(400/100)+1)
	txns := up.AddXP(400)
	if up.Level != 3 {
		t.Errorf("Level = %d, want 3", up.Level)
	}
	// level-up bonus: 3*10 points
	if len(txns) != 1 || txns[0].Type != TxnBonus || txns[0].Points != 30 {
		t.Errorf("txns = %+v, want one bonus of 30", txns)
	}
	// next level (4) needs 3^2*100 = 900 total XP
	if up.XPToNextLevel != 500 {
		t.Errorf("XPToNextLevel = %d, want 500", up.XPToNextLevel)
	}

	// small XP gain without level change pays no bonus
	txns = up.AddXP(10)
	if up.Level != 3 || len(txns) != 0 {
		t.Errorf("Level = %d txns = %v, want 3 and none", up.Level, txns)
	}
}

func TestUserPointsRecordActivity(t *testing.T) {
	day := func(n int) time.Time {
		return time.Date(2026, time.August, n, 10, 0, 0, 0, time.UTC)
	}
	up := UserPoints{UserID: "u1", Level: 1}

	up.RecordActivity(day(1))
	if up.CurrentStreak != 1 {
		t.Fatalf("CurrentStreak = %d, want 1", up.CurrentStreak)
	}
	up.RecordActivity(day(1)) // same day, no-op
	if up.CurrentStreak != 1 {
		t.Errorf("CurrentStreak after same day = %d, want 1", up.CurrentStreak)
	}
	up.RecordActivity(day(2)) // consecutive
	up.RecordActivity(day(3))
	if up.CurrentStreak != 3 || up.LongestStreak != 3 {
		t.Errorf("streak = %d/%d, want 3/3", up.CurrentStreak, up.LongestStreak)
	}
	up.RecordActivity(day(7)) // gap resets
	if up.CurrentStreak != 1 {
		t.Errorf("CurrentStreak after gap = %d, want 1", up.CurrentStreak)
	}
	if up.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3", up.LongestStreak)
	}
}

func TestBadgeMeetsCriteria(t *testing.T) {
	tests := []struct {
		name    string
		b       Badge
		evalCtx EvalContext
		want    bool
	}{
		{
			name:    "specific course completed",
			b:       Badge{TriggerType: TriggerCourseCompletion, CourseID: "c1"},
			evalCtx: EvalContext{CourseID: "c1"},
			want:    true,
		},
		{
			name:    "different course",
			b:       Badge{TriggerType: TriggerCourseCompletion, CourseID: "c1"},
			evalCtx: EvalContext{CourseID: "c2"},
		},
		{
			name:    "any course count gte",
			b:       Badge{TriggerType: TriggerCourseCompletion, RequiredValue: 5, ComparisonOperator: CompareGTE},
			evalCtx: EvalContext{CompletedCourses: 5},
			want:    true,
		},
		{
			name:    "count below threshold",
			b:       Badge{TriggerType: TriggerCourseCompletion, RequiredValue: 5, ComparisonOperator: CompareGTE},
			evalCtx: EvalContext{CompletedCourses: 4},
		},
		{
			name:    "test score gte",
			b:       Badge{TriggerType: TriggerTestScore, RequiredValue: 90, ComparisonOperator: CompareGTE},
			evalCtx: EvalContext{BestPercentage: 92.5},
			want:    true,
		},
		{
			name:    "perfect score",
			b:       Badge{TriggerType: TriggerPerfectScore},
			evalCtx: EvalContext{BestPercentage: 100},
			want:    true,
		},
		{
			name:    "near-perfect score",
			b:       Badge{TriggerType: TriggerPerfectScore},
			evalCtx: EvalContext{BestPercentage: 99.9},
		},
		{
			name:    "custom never auto-awards",
			b:       Badge{TriggerType: TriggerCustom},
			evalCtx: EvalContext{BestPercentage: 100, CompletedCourses: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.MeetsCriteria(tt.evalCtx); got != tt.want {
				t.Errorf("MeetsCriteria() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadgeIsAvailable(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		b    Badge
		want bool
	}{
		{name: "active no window", b: Badge{IsActive: true}, want: true},
		{name: "inactive", b: Badge{}},
		{name: "not yet available", b: Badge{IsActive: true, AvailableFrom: now.Add(time.Hour)}},
		{name: "window closed", b: Badge{IsActive: true, AvailableUntil: now.Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.IsAvailable(now); got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}
