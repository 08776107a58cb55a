package badge

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("badge not found")
	ErrPointsNotFound     = errors.New("user points not found")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotAwardable       = errors.New("badge cannot be awarded")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateBadge(ctx context.Context, b Badge) (Badge, error)
		QueryBadges(ctx context.Context, activeOnly bool, triggerType string) ([]Badge, error)
		GetBadgeByID(ctx context.Context, id string) (Badge, error)
		UpdateBadge(ctx context.Context, b Badge) (Badge, error)
		DeleteBadgesByID(ctx context.Context, ids ...string) (int, error)

		CreateUserBadge(ctx context.Context, ub UserBadge) (UserBadge, error)
		QueryUserBadges(ctx context.Context, userID string) ([]UserBadge, error)
		CountUserBadge(ctx context.Context, userID, badgeID string) (int, error)

		GetUserPoints(ctx context.Context, userID string) (UserPoints, error)
		UpsertUserPoints(ctx context.Context, up UserPoints) (UserPoints, error)

		CreatePointTransactions(ctx context.Context, txns ...PointTransaction) error
		QueryPointTransactions(ctx context.Context, userID string, limit int) ([]PointTransaction, error)

		// TopUserPoints is the database fallback for the leaderboard.
		TopUserPoints(ctx context.Context, limit int) ([]UserPoints, error)
	}

	// LeaderboardStore keeps a live points ranking. The redis ZSET
	// implementation backs it in production; a nil store falls back to the
	// database.
	LeaderboardStore interface {
		UpdateScore(ctx context.Context, userID string, points int) error
		Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
		Rank(ctx context.Context, userID string) (int, error)
	}

	// AwardHook runs after a badge is awarded. Wired to notifications.
	AwardHook func(ctx context.Context, usrID string, b Badge)

	Service interface {
		Create(ctx context.Context, nb NewBadge, createdBy user.User) (Badge, error)
		Query(ctx context.Context, activeOnly bool) ([]Badge, error)
		GetByID(ctx context.Context, id string) (Badge, error)
		Deactivate(ctx context.Context, id string) (Badge, error)
		Delete(ctx context.Context, ids ...string) error

		// Award grants a badge, credits its points and XP, and logs the
		// transactions. Respects stackability and max-award limits.
		Award(ctx context.Context, badgeID, userID string, awardedBy user.User) (UserBadge, error)
		QueryUserBadges(ctx context.Context, userID string) ([]UserBadge, error)

		// EvaluateCourseCompletion checks all course-completion badges after a
		// student finishes a course.
		EvaluateCourseCompletion(ctx context.Context, userID, courseID string, completedCourses int) error
		// EvaluateTestResult checks all score-triggered badges after a result
		// is recomputed.
		EvaluateTestResult(ctx context.Context, userID string, bestPercentage float64, passed bool) error

		GetPoints(ctx context.Context, userID string) (UserPoints, error)
		SpendPoints(ctx context.Context, userID string, points int, reason string) (UserPoints, error)
		RecordActivity(ctx context.Context, userID string) error
		QueryTransactions(ctx context.Context, userID string, limit int) ([]PointTransaction, error)

		Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
		UserRank(ctx context.Context, userID string) (int, error)

		SetAwardHook(hook AwardHook)
	}

	service struct {
		repo        Repository
		leaderboard LeaderboardStore // may be nil
		awardHook   AwardHook
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, leaderboard LeaderboardStore) Service {
	return &service{
		repo:        repo,
		leaderboard: leaderboard,
	}
}

func (svc *service) SetAwardHook(hook AwardHook) {
	svc.awardHook = hook
}

func (svc *service) Create(ctx context.Context, nb NewBadge, createdBy user.User) (Badge, error) {
	now := nowFunc().UTC()
	b := Badge{
		Name:        nb.Name,
		Description: nb.Description,

		Type:   nb.Type,
		Rarity: nb.Rarity,

		IconClass:       nb.IconClass,
		Color:           nb.Color,
		BackgroundColor: nb.BackgroundColor,

		TriggerType: nb.TriggerType,
		CourseID:    nb.CourseID,

		RequiredValue:      nb.RequiredValue,
		ComparisonOperator: nb.ComparisonOperator,

		IsActive:    true,
		IsStackable: nb.IsStackable,
		MaxAwards:   nb.MaxAwards,
		IsSecret:    nb.IsSecret,

		PointsValue: nb.PointsValue,
		XPReward:    nb.XPReward,

		AvailableFrom:  nb.AvailableFrom,
		AvailableUntil: nb.AvailableUntil,

		CreatedByID: createdBy.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateBadge(ctx, b)
}

func (svc *service) Query(ctx context.Context, activeOnly bool) ([]Badge, error) {
	return svc.repo.QueryBadges(ctx, activeOnly, "")
}

func (svc *service) GetByID(ctx context.Context, id string) (Badge, error) {
	return svc.repo.GetBadgeByID(ctx, id)
}

func (svc *service) Deactivate(ctx context.Context, id string) (Badge, error) {
	b, err := svc.repo.GetBadgeByID(ctx, id)
	if err != nil {
		return Badge{}, err
	}
	b.IsActive = false
	b.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateBadge(ctx, b)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteBadgesByID(ctx, ids...)
	return err
}

func (svc *service) Award(ctx context.Context, badgeID, userID string, awardedBy user.User) (UserBadge, error) {
	b, err := svc.repo.GetBadgeByID(ctx, badgeID)
	if err != nil {
		return UserBadge{}, err
	}
	return svc.award(ctx, b, userID, awardedBy.ID)
}

func (svc *service) award(ctx context.Context, b Badge, userID, awardedByID string) (UserBadge, error) {
	now := nowFunc().UTC()
	if !b.IsAvailable(now) {
		return UserBadge{}, core.NewValidationError(ErrNotAwardable)
	}

	count, err := svc.repo.CountUserBadge(ctx, userID, b.ID)
	if err != nil {
		return UserBadge{}, err
	}
	if count > 0 && !b.IsStackable {
		return UserBadge{}, core.NewValidationError(ErrNotAwardable)
	}
	if b.MaxAwards > 0 && count >= b.MaxAwards {
		return UserBadge{}, core.NewValidationError(ErrNotAwardable)
	}

	ub := UserBadge{
		UserID:      userID,
		BadgeID:     b.ID,
		EarnedAt:    now,
		AwardedByID: awardedByID,
		IsPublic:    true,
	}
	ub, err = svc.repo.CreateUserBadge(ctx, ub)
	if err != nil {
		return UserBadge{}, err
	}

	b.TotalAwarded++
	b.UpdatedAt = now
	if _, err = svc.repo.UpdateBadge(ctx, b); err != nil {
		return UserBadge{}, errors.Wrap(err, "bumping award count")
	}

	up, err := svc.getOrInitPoints(ctx, userID)
	if err != nil {
		return UserBadge{}, err
	}
	up.BadgesEarned++
	txns := up.AddPoints(b.PointsValue, "badge: "+b.Name)
	if b.XPReward > 0 {
		txns = append(txns, up.AddXP(b.XPReward)...)
	}
	for i := range txns {
		txns[i].BadgeID = b.ID
		txns[i].CreatedAt = now
	}
	if err = svc.savePoints(ctx, up, txns); err != nil {
		return UserBadge{}, err
	}

	if svc.awardHook != nil {
		svc.awardHook(ctx, userID, b)
	}
	return ub, nil
}

func (svc *service) QueryUserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	return svc.repo.QueryUserBadges(ctx, userID)
}

func (svc *service) EvaluateCourseCompletion(ctx context.Context, userID, courseID string, completedCourses int) error {
	up, err := svc.getOrInitPoints(ctx, userID)
	if err != nil {
		return err
	}
	up.CoursesCompleted++
	if err = svc.savePoints(ctx, up, nil); err != nil {
		return err
	}

	badges, err := svc.repo.QueryBadges(ctx, true /* activeOnly */, TriggerCourseCompletion)
	if err != nil {
		return err
	}
	evalCtx := EvalContext{CourseID: courseID, CompletedCourses: completedCourses}
	for _, b := range badges {
		if !b.MeetsCriteria(evalCtx) {
			continue
		}
		if _, err = svc.award(ctx, b, userID, ""); err != nil && !core.IsValidationError(err) {
			return err
		}
	}
	return nil
}

func (svc *service) EvaluateTestResult(ctx context.Context, userID string, bestPercentage float64, passed bool) error {
	if passed {
		up, err := svc.getOrInitPoints(ctx, userID)
		if err != nil {
			return err
		}
		up.TestsPassed++
		if err = svc.savePoints(ctx, up, nil); err != nil {
			return err
		}
	}

	evalCtx := EvalContext{BestPercentage: bestPercentage}
	for _, trigger := range []string{TriggerTestScore, TriggerPerfectScore} {
		badges, err := svc.repo.QueryBadges(ctx, true /* activeOnly */, trigger)
		if err != nil {
			return err
		}
		for _, b := range badges {
			if !b.MeetsCriteria(evalCtx) {
				continue
			}
			if _, err = svc.award(ctx, b, userID, ""); err != nil && !core.IsValidationError(err) {
				return err
			}
		}
	}
	return nil
}

func (svc *service) GetPoints(ctx context.Context, userID string) (UserPoints, error) {
	return svc.getOrInitPoints(ctx, userID)
}

func (svc *service) SpendPoints(ctx context.Context, userID string, points int, reason string) (UserPoints, error) {
	up, err := svc.getOrInitPoints(ctx, userID)
	if err != nil {
		return UserPoints{}, err
	}
	txn, ok := up.SpendPoints(points, reason)
	if !ok {
		return UserPoints{}, core.NewValidationError(ErrInsufficientPoints)
	}
	txn.CreatedAt = nowFunc().UTC()
	if err = svc.savePoints(ctx, up, []PointTransaction{txn}); err != nil {
		return UserPoints{}, err
	}
	return up, nil
}

func (svc *service) RecordActivity(ctx context.Context, userID string) error {
	up, err := svc.getOrInitPoints(ctx, userID)
	if err != nil {
		return err
	}
	up.RecordActivity(nowFunc().UTC())
	return svc.savePoints(ctx, up, nil)
}

func (svc *service) QueryTransactions(ctx context.Context, userID string, limit int) ([]PointTransaction, error) {
	return svc.repo.QueryPointTransactions(ctx, userID, limit)
}

func (svc *service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if svc.leaderboard != nil {
		return svc.leaderboard.Top(ctx, limit)
	}
	tops, err := svc.repo.TopUserPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(tops))
	for i, up := range tops {
		entries[i] = LeaderboardEntry{Rank: i + 1, UserID: up.UserID, Points: up.TotalPoints}
	}
	return entries, nil
}

func (svc *service) UserRank(ctx context.Context, userID string) (int, error) {
	if svc.leaderboard != nil {
		return svc.leaderboard.Rank(ctx, userID)
	}
	return 0, nil
}

func (svc *service) getOrInitPoints(ctx context.Context, userID string) (UserPoints, error) {
	up, err := svc.repo.GetUserPoints(ctx, userID)
	if err != nil {
		if errors.Cause(err) != ErrPointsNotFound {
			return UserPoints{}, err
		}
		up = UserPoints{UserID: userID, Level: 1, XPToNextLevel: 100}
	}
	return up, nil
}

func (svc *service) savePoints(ctx context.Context, up UserPoints, txns []PointTransaction) error {
	up.UpdatedAt = nowFunc().UTC()
	if _, err := svc.repo.UpsertUserPoints(ctx, up); err != nil {
		return err
	}
	if len(txns) > 0 {
		if err := svc.repo.CreatePointTransactions(ctx, txns...); err != nil {
			return err
		}
	}
	if svc.leaderboard != nil {
		if err := svc.leaderboard.UpdateScore(ctx, up.UserID, up.TotalPoints); err != nil {
			return errors.Wrap(err, "updating leaderboard")
		}
	}
	return nil
}
