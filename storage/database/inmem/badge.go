package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core/badge"
)

type badgeRepository struct {
	db *DB
}

var _ badge.Repository = (*badgeRepository)(nil)

func NewBadgeRepository(db *DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	repo.db.badges[b.ID] = b
	return b, nil
}

func (repo *badgeRepository) QueryBadges(ctx context.Context, activeOnly bool, triggerType string) ([]badge.Badge, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var badges []badge.Badge
	for _, b := range repo.db.badges {
		if activeOnly && !b.IsActive {
			continue
		}
		if triggerType != "" && b.TriggerType != triggerType {
			continue
		}
		badges = append(badges, b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Name < badges[j].Name })
	return badges, nil
}

func (repo *badgeRepository) GetBadgeByID(ctx context.Context, id string) (badge.Badge, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.badges[id]; ok {
		return b, nil
	}
	return badge.Badge{}, badge.ErrNotFound
}

func (repo *badgeRepository) UpdateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.badges[b.ID]; !ok {
		return badge.Badge{}, badge.ErrNotFound
	}
	repo.db.badges[b.ID] = b
	return b, nil
}

func (repo *badgeRepository) DeleteBadgesByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.badges[id]; ok {
			delete(repo.db.badges, id)
			n++
		}
	}
	return n, nil
}

func (repo *badgeRepository) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (badge.UserBadge, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	repo.db.userBadges[ub.ID] = ub
	return ub, nil
}

func (repo *badgeRepository) QueryUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ubs []badge.UserBadge
	for _, ub := range repo.db.userBadges {
		if ub.UserID == userID {
			ubs = append(ubs, ub)
		}
	}
	sort.Slice(ubs, func(i, j int) bool { return ubs[i].EarnedAt.After(ubs[j].EarnedAt) })
	return ubs, nil
}

func (repo *badgeRepository) CountUserBadge(ctx context.Context, userID, badgeID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, ub := range repo.db.userBadges {
		if ub.UserID == userID && ub.BadgeID == badgeID {
			n++
		}
	}
	return n, nil
}

func (repo *badgeRepository) GetUserPoints(ctx context.Context, userID string) (badge.UserPoints, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if up, ok := repo.db.userPoints[userID]; ok {
		return up, nil
	}
	return badge.UserPoints{}, badge.ErrPointsNotFound
}

func (repo *badgeRepository) UpsertUserPoints(ctx context.Context, up badge.UserPoints) (badge.UserPoints, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.userPoints[up.UserID] = up
	return up, nil
}

func (repo *badgeRepository) CreatePointTransactions(ctx context.Context, txns ...badge.PointTransaction) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, txn := range txns {
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		repo.db.pointTxns = append(repo.db.pointTxns, txn)
	}
	return nil
}

func (repo *badgeRepository) QueryPointTransactions(ctx context.Context, userID string, limit int) ([]badge.PointTransaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var txns []badge.PointTransaction
	for _, txn := range repo.db.pointTxns {
		if txn.UserID == userID {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (repo *badgeRepository) TopUserPoints(ctx context.Context, limit int) ([]badge.UserPoints, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	ups := make([]badge.UserPoints, 0, len(repo.db.userPoints))
	for _, up := range repo.db.userPoints {
		ups = append(ups, up)
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].TotalPoints > ups[j].TotalPoints })
	if len(ups) > limit {
		ups = ups[:limit]
	}
	return ups, nil
}
