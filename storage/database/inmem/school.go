package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.Code == code {
			return school.ErrCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	repo.db.schools[sch.ID] = sch
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, sch := range repo.db.schools {
		if filter != nil {
			if filter.Search != "" &&
				!containsFold(sch.Name, filter.Search) &&
				!containsFold(sch.Code, filter.Search) &&
				!containsFold(sch.City, filter.Search) {
				continue
			}
			if filter.SchoolType != "" && sch.SchoolType != filter.SchoolType {
				continue
			}
			if filter.IsActive != nil && sch.IsActive != *filter.IsActive {
				continue
			}
		}
		schools = append(schools, sch)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByCode(ctx context.Context, code string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.Code == code {
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[sch.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	repo.db.schools[sch.ID] = sch
	return sch, nil
}

func (repo *schoolRepository) DeleteSchoolsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.schools[id]; ok {
			delete(repo.db.schools, id)
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CreateInvitation(ctx context.Context, inv school.Invitation) (school.Invitation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	repo.db.invitations[inv.ID] = inv
	return inv, nil
}

func (repo *schoolRepository) GetInvitationByID(ctx context.Context, id string) (school.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.invitations[id]; ok {
		return inv, nil
	}
	return school.Invitation{}, school.ErrInvitationNotFound
}

func (repo *schoolRepository) GetInvitationByToken(ctx context.Context, token string) (school.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return school.Invitation{}, school.ErrInvitationNotFound
}

func (repo *schoolRepository) PendingInvitationExists(ctx context.Context, email, schoolID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.invitations {
		if inv.Email == email && inv.SchoolID == schoolID && inv.Status == school.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) QueryInvitations(ctx context.Context, schoolID, status string) ([]school.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var invs []school.Invitation
	for _, inv := range repo.db.invitations {
		if schoolID != "" && inv.SchoolID != schoolID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		invs = append(invs, inv)
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}

func (repo *schoolRepository) UpdateInvitation(ctx context.Context, inv school.Invitation) (school.Invitation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.invitations[inv.ID]
	if !ok {
		return school.Invitation{}, school.ErrInvitationNotFound
	}
	orig.Status = inv.Status
	orig.AcceptedByID = inv.AcceptedByID
	orig.AcceptedAt = inv.AcceptedAt
	repo.db.invitations[inv.ID] = orig
	return orig, nil
}

func (repo *schoolRepository) ExpireOverdueInvitations(ctx context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, inv := range repo.db.invitations {
		if inv.Status == school.InvitationPending && !inv.ExpiresAt.After(now) {
			inv.Status = school.InvitationExpired
			repo.db.invitations[id] = inv
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CreateRegistrationCode(ctx context.Context, rc school.RegistrationCode) (school.RegistrationCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	repo.db.regCodes[rc.ID] = rc
	return rc, nil
}

func (repo *schoolRepository) RegistrationCodeExists(ctx context.Context, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rc := range repo.db.regCodes {
		if rc.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) GetRegistrationCodeByID(ctx context.Context, id string) (school.RegistrationCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rc, ok := repo.db.regCodes[id]; ok {
		return rc, nil
	}
	return school.RegistrationCode{}, school.ErrRegCodeNotFound
}

func (repo *schoolRepository) GetRegistrationCodeByCode(ctx context.Context, code string) (school.RegistrationCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rc := range repo.db.regCodes {
		if rc.Code == code {
			return rc, nil
		}
	}
	return school.RegistrationCode{}, school.ErrRegCodeNotFound
}

func (repo *schoolRepository) QueryRegistrationCodes(ctx context.Context, schoolID string) ([]school.RegistrationCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var codes []school.RegistrationCode
	for _, rc := range repo.db.regCodes {
		if schoolID != "" && rc.SchoolID != schoolID {
			continue
		}
		codes = append(codes, rc)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

func (repo *schoolRepository) UpdateRegistrationCode(ctx context.Context, rc school.RegistrationCode) (school.RegistrationCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.regCodes[rc.ID]
	if !ok {
		return school.RegistrationCode{}, school.ErrRegCodeNotFound
	}
	orig.Status = rc.Status
	orig.MaxUses = rc.MaxUses
	orig.ExpiresAt = rc.ExpiresAt
	repo.db.regCodes[rc.ID] = orig
	return orig, nil
}

func (repo *schoolRepository) UseRegistrationCode(ctx context.Context, code string, now time.Time) (school.RegistrationCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, rc := range repo.db.regCodes {
		if rc.Code != code {
			continue
		}
		if rc.Status != school.CodeActive {
			break
		}
		if !rc.ExpiresAt.IsZero() && !rc.ExpiresAt.After(now) {
			break
		}
		if rc.MaxUses > 0 && rc.CurrentUses >= rc.MaxUses {
			break
		}
		rc.CurrentUses++
		if rc.MaxUses > 0 && rc.CurrentUses >= rc.MaxUses {
			rc.Status = school.CodeExpired
		}
		repo.db.regCodes[id] = rc
		return rc, nil
	}
	return school.RegistrationCode{}, school.ErrRegCodeInvalid
}

func (repo *schoolRepository) ReleaseRegistrationCodeUse(ctx context.Context, code string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, rc := range repo.db.regCodes {
		if rc.Code != code {
			continue
		}
		if rc.CurrentUses > 0 {
			rc.CurrentUses--
		}
		if rc.Status == school.CodeExpired {
			rc.Status = school.CodeActive
		}
		repo.db.regCodes[id] = rc
		return nil
	}
	return school.ErrRegCodeNotFound
}

func (repo *schoolRepository) ExpireOverdueRegistrationCodes(ctx context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, rc := range repo.db.regCodes {
		if rc.Status == school.CodeActive && !rc.ExpiresAt.IsZero() && !rc.ExpiresAt.After(now) {
			rc.Status = school.CodeExpired
			repo.db.regCodes[id] = rc
			n++
		}
	}
	return n, nil
}
