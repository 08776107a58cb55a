package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core/badge"
)

type badgeRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`

	Type   string `db:"badge_type"`
	Rarity string `db:"rarity"`

	IconClass       string `db:"icon_class"`
	Color           string `db:"color"`
	BackgroundColor string `db:"background_color"`

	TriggerType string      `db:"trigger_type"`
	CourseID    null.String `db:"course_id"`

	RequiredValue      float64 `db:"required_value"`
	ComparisonOperator string  `db:"comparison_operator"`

	IsActive    bool `db:"is_active"`
	IsStackable bool `db:"is_stackable"`
	MaxAwards   int  `db:"max_awards"`
	IsSecret    bool `db:"is_secret"`

	PointsValue int `db:"points_value"`
	XPReward    int `db:"xp_reward"`

	AvailableFrom  null.Time `db:"available_from"`
	AvailableUntil null.Time `db:"available_until"`

	TotalAwarded int `db:"total_awarded"`

	CreatedBy null.String `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r badgeRow) toDomain() badge.Badge {
	return badge.Badge{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,

		Type:   r.Type,
		Rarity: r.Rarity,

		IconClass:       r.IconClass,
		Color:           r.Color,
		BackgroundColor: r.BackgroundColor,

		TriggerType: r.TriggerType,
		CourseID:    r.CourseID.String,

		RequiredValue:      r.RequiredValue,
		ComparisonOperator: r.ComparisonOperator,

		IsActive:    r.IsActive,
		IsStackable: r.IsStackable,
		MaxAwards:   r.MaxAwards,
		IsSecret:    r.IsSecret,

		PointsValue: r.PointsValue,
		XPReward:    r.XPReward,

		AvailableFrom:  fromNullTime(r.AvailableFrom),
		AvailableUntil: fromNullTime(r.AvailableUntil),

		TotalAwarded: r.TotalAwarded,

		CreatedByID: r.CreatedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newBadgeRow(b badge.Badge) badgeRow {
	return badgeRow{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,

		Type:   b.Type,
		Rarity: b.Rarity,

		IconClass:       b.IconClass,
		Color:           b.Color,
		BackgroundColor: b.BackgroundColor,

		TriggerType: b.TriggerType,
		CourseID:    nullString(b.CourseID),

		RequiredValue:      b.RequiredValue,
		ComparisonOperator: b.ComparisonOperator,

		IsActive:    b.IsActive,
		IsStackable: b.IsStackable,
		MaxAwards:   b.MaxAwards,
		IsSecret:    b.IsSecret,

		PointsValue: b.PointsValue,
		XPReward:    b.XPReward,

		AvailableFrom:  nullTime(b.AvailableFrom),
		AvailableUntil: nullTime(b.AvailableUntil),

		TotalAwarded: b.TotalAwarded,

		CreatedBy: nullString(b.CreatedByID),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

const badgeColumns = `id, name, description, badge_type, rarity, icon_class, color,
	background_color, trigger_type, course_id, required_value, comparison_operator, is_active,
	is_stackable, max_awards, is_secret, points_value, xp_reward, available_from,
	available_until, total_awarded, created_by, created_at, updated_at`

type userBadgeRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	BadgeID     string      `db:"badge_id"`
	EarnedAt    time.Time   `db:"earned_at"`
	AwardedByID null.String `db:"awarded_by_id"`
	IsFeatured  bool        `db:"is_featured"`
	IsPublic    bool        `db:"is_public"`
}

func (r userBadgeRow) toDomain() badge.UserBadge {
	return badge.UserBadge{
		ID:          r.ID,
		UserID:      r.UserID,
		BadgeID:     r.BadgeID,
		EarnedAt:    r.EarnedAt.UTC(),
		AwardedByID: r.AwardedByID.String,
		IsFeatured:  r.IsFeatured,
		IsPublic:    r.IsPublic,
	}
}

const userBadgeColumns = `id, user_id, badge_id, earned_at, awarded_by_id, is_featured, is_public`

type userPointsRow struct {
	UserID string `db:"user_id"`

	TotalPoints     int `db:"total_points"`
	AvailablePoints int `db:"available_points"`
	SpentPoints     int `db:"spent_points"`

	TotalXP       int `db:"total_xp"`
	Level         int `db:"level"`
	XPToNextLevel int `db:"xp_to_next_level"`

	CurrentStreak    int       `db:"current_streak"`
	LongestStreak    int       `db:"longest_streak"`
	LastActivityDate null.Time `db:"last_activity_date"`

	BadgesEarned     int `db:"badges_earned"`
	CoursesCompleted int `db:"courses_completed"`
	TestsPassed      int `db:"tests_passed"`

	UpdatedAt time.Time `db:"updated_at"`
}

func (r userPointsRow) toDomain() badge.UserPoints {
	return badge.UserPoints{
		UserID: r.UserID,

		TotalPoints:     r.TotalPoints,
		AvailablePoints: r.AvailablePoints,
		SpentPoints:     r.SpentPoints,

		TotalXP:       r.TotalXP,
		Level:         r.Level,
		XPToNextLevel: r.XPToNextLevel,

		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		LastActivityDate: fromNullTime(r.LastActivityDate),

		BadgesEarned:     r.BadgesEarned,
		CoursesCompleted: r.CoursesCompleted,
		TestsPassed:      r.TestsPassed,

		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const userPointsColumns = `user_id, total_points, available_points, spent_points, total_xp,
	level, xp_to_next_level, current_streak, longest_streak, last_activity_date, badges_earned,
	courses_completed, tests_passed, updated_at`

type pointTxnRow struct {
	ID       string      `db:"id"`
	UserID   string      `db:"user_id"`
	Points   int         `db:"points"`
	Type     string      `db:"txn_type"`
	Reason   string      `db:"reason"`
	BadgeID  null.String `db:"badge_id"`
	CourseID null.String `db:"course_id"`

	CreatedAt time.Time `db:"created_at"`
}

func (r pointTxnRow) toDomain() badge.PointTransaction {
	return badge.PointTransaction{
		ID:        r.ID,
		UserID:    r.UserID,
		Points:    r.Points,
		Type:      r.Type,
		Reason:    r.Reason,
		BadgeID:   r.BadgeID.String,
		CourseID:  r.CourseID.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const pointTxnColumns = `id, user_id, txn_type, points, reason, badge_id, course_id, created_at`

type badgeRepository struct {
	db *sqlx.DB
}

var _ badge.Repository = (*badgeRepository)(nil)

func NewBadgeRepository(db *sqlx.DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	q := `INSERT INTO badges (` + badgeColumns + `) VALUES (
		:id, :name, :description, :badge_type, :rarity, :icon_class, :color, :background_color,
		:trigger_type, :course_id, :required_value, :comparison_operator, :is_active,
		:is_stackable, :max_awards, :is_secret, :points_value, :xp_reward, :available_from,
		:available_until, :total_awarded, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newBadgeRow(b)); err != nil {
		return badge.Badge{}, errors.Wrap(err, "creating badge")
	}
	return b, nil
}

func (repo *badgeRepository) QueryBadges(ctx context.Context, activeOnly bool, triggerType string) ([]badge.Badge, error) {
	q := `SELECT ` + badgeColumns + ` FROM badges`
	var (
		conds []string
		args  []interface{}
	)
	if activeOnly {
		conds = append(conds, "is_active")
	}
	if triggerType != "" {
		args = append(args, triggerType)
		conds = append(conds, "trigger_type = $1")
	}
	for i, cond := range conds {
		if i == 0 {
			q += " WHERE " + cond
		} else {
			q += " AND " + cond
		}
	}
	q += " ORDER BY name ASC"

	var rows []badgeRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	badges := make([]badge.Badge, 0, len(rows))
	for _, row := range rows {
		badges = append(badges, row.toDomain())
	}
	return badges, nil
}

func (repo *badgeRepository) GetBadgeByID(ctx context.Context, id string) (badge.Badge, error) {
	var row badgeRow
	q := `SELECT ` + badgeColumns + ` FROM badges WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return badge.Badge{}, badge.ErrNotFound
		}
		return badge.Badge{}, errors.Wrap(err, "getting badge")
	}
	return row.toDomain(), nil
}

func (repo *badgeRepository) UpdateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	q := `UPDATE badges SET
		name = :name, description = :description, badge_type = :badge_type, rarity = :rarity,
		icon_class = :icon_class, color = :color, background_color = :background_color,
		trigger_type = :trigger_type, course_id = :course_id, required_value = :required_value,
		comparison_operator = :comparison_operator, is_active = :is_active,
		is_stackable = :is_stackable, max_awards = :max_awards, is_secret = :is_secret,
		points_value = :points_value, xp_reward = :xp_reward, available_from = :available_from,
		available_until = :available_until, total_awarded = :total_awarded,
		updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newBadgeRow(b))
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "updating badge")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return badge.Badge{}, badge.ErrNotFound
	}
	return b, nil
}

func (repo *badgeRepository) DeleteBadgesByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM badges WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting badges")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *badgeRepository) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (badge.UserBadge, error) {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	q := `INSERT INTO user_badges (` + userBadgeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		ub.ID, ub.UserID, ub.BadgeID, ub.EarnedAt, nullString(ub.AwardedByID), ub.IsFeatured, ub.IsPublic)
	if err != nil {
		return badge.UserBadge{}, errors.Wrap(err, "creating user badge")
	}
	return ub, nil
}

func (repo *badgeRepository) QueryUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	q := `SELECT ` + userBadgeColumns + ` FROM user_badges WHERE user_id = $1 ORDER BY earned_at DESC`
	var rows []userBadgeRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying user badges")
	}
	ubs := make([]badge.UserBadge, 0, len(rows))
	for _, row := range rows {
		ubs = append(ubs, row.toDomain())
	}
	return ubs, nil
}

func (repo *badgeRepository) CountUserBadge(ctx context.Context, userID, badgeID string) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM user_badges WHERE user_id = $1 AND badge_id = $2`
	if err := repo.db.GetContext(ctx, &count, q, userID, badgeID); err != nil {
		return 0, errors.Wrap(err, "counting user badges")
	}
	return count, nil
}

func (repo *badgeRepository) GetUserPoints(ctx context.Context, userID string) (badge.UserPoints, error) {
	var row userPointsRow
	q := `SELECT ` + userPointsColumns + ` FROM user_points WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		if isNoRows(err) {
			return badge.UserPoints{}, badge.ErrPointsNotFound
		}
		return badge.UserPoints{}, errors.Wrap(err, "getting user points")
	}
	return row.toDomain(), nil
}

func (repo *badgeRepository) UpsertUserPoints(ctx context.Context, up badge.UserPoints) (badge.UserPoints, error) {
	q := `INSERT INTO user_points (` + userPointsColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (user_id) DO UPDATE SET
		total_points = EXCLUDED.total_points,
		available_points = EXCLUDED.available_points,
		spent_points = EXCLUDED.spent_points,
		total_xp = EXCLUDED.total_xp,
		level = EXCLUDED.level,
		xp_to_next_level = EXCLUDED.xp_to_next_level,
		current_streak = EXCLUDED.current_streak,
		longest_streak = EXCLUDED.longest_streak,
		last_activity_date = EXCLUDED.last_activity_date,
		badges_earned = EXCLUDED.badges_earned,
		courses_completed = EXCLUDED.courses_completed,
		tests_passed = EXCLUDED.tests_passed,
		updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, q,
		up.UserID, up.TotalPoints, up.AvailablePoints, up.SpentPoints, up.TotalXP,
		up.Level, up.XPToNextLevel, up.CurrentStreak, up.LongestStreak,
		nullTime(up.LastActivityDate), up.BadgesEarned, up.CoursesCompleted,
		up.TestsPassed, up.UpdatedAt)
	if err != nil {
		return badge.UserPoints{}, errors.Wrap(err, "upserting user points")
	}
	return up, nil
}

func (repo *badgeRepository) CreatePointTransactions(ctx context.Context, txns ...badge.PointTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	q := `INSERT INTO point_transactions (` + pointTxnColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, txn := range txns {
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		_, err := repo.db.ExecContext(ctx, q,
			txn.ID, txn.UserID, txn.Type, txn.Points, txn.Reason,
			nullString(txn.BadgeID), nullString(txn.CourseID), txn.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "creating point transaction")
		}
	}
	return nil
}

func (repo *badgeRepository) QueryPointTransactions(ctx context.Context, userID string, limit int) ([]badge.PointTransaction, error) {
	q := `SELECT ` + pointTxnColumns + ` FROM point_transactions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []pointTxnRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying point transactions")
	}
	txns := make([]badge.PointTransaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.toDomain())
	}
	return txns, nil
}

func (repo *badgeRepository) TopUserPoints(ctx context.Context, limit int) ([]badge.UserPoints, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT ` + userPointsColumns + ` FROM user_points ORDER BY total_points DESC LIMIT $1`
	var rows []userPointsRow
	if err := repo.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying top user points")
	}
	tops := make([]badge.UserPoints, 0, len(rows))
	for _, row := range rows {
		tops = append(tops, row.toDomain())
	}
	return tops, nil
}
